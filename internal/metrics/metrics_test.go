// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordBackup(t *testing.T) {
	before := testutil.ToFloat64(BackupsTotal.WithLabelValues("snapshot", "completed"))
	RecordBackup("snapshot", "completed", 2*time.Second, 4096, 512)
	after := testutil.ToFloat64(BackupsTotal.WithLabelValues("snapshot", "completed"))

	if after-before != 1 {
		t.Errorf("BackupsTotal delta = %v, want 1", after-before)
	}
	if ts := testutil.ToFloat64(LastBackupTimestamp.WithLabelValues("snapshot")); ts == 0 {
		t.Error("LastBackupTimestamp not set for completed backup")
	}
}

func TestRecordBackupSizes(t *testing.T) {
	read := func(kind string) uint64 {
		m := &dto.Metric{}
		if err := BackupBytes.WithLabelValues("full", kind).(prometheus.Metric).Write(m); err != nil {
			t.Fatal(err)
		}
		return m.GetHistogram().GetSampleCount()
	}
	original, compressed := read("original"), read("compressed")

	RecordBackup("full", "completed", time.Second, 1<<20, 1<<16)
	RecordBackup("full", "failed", time.Second, 0, 0)

	if got := read("original") - original; got != 1 {
		t.Errorf("original size samples = %d, want 1", got)
	}
	if got := read("compressed") - compressed; got != 1 {
		t.Errorf("compressed size samples = %d, want 1", got)
	}
}

func TestRecordFailedBackupLeavesTimestamp(t *testing.T) {
	before := testutil.ToFloat64(LastBackupTimestamp.WithLabelValues("incremental"))
	RecordBackup("incremental", "failed", time.Second, 0, 0)
	if got := testutil.ToFloat64(LastBackupTimestamp.WithLabelValues("incremental")); got != before {
		t.Errorf("LastBackupTimestamp changed on failure: %v -> %v", before, got)
	}
}

func TestResultLabels(t *testing.T) {
	before := testutil.ToFloat64(NotificationsTotal.WithLabelValues("webhook", "failure"))
	RecordNotification("webhook", errors.New("timeout"))
	if got := testutil.ToFloat64(NotificationsTotal.WithLabelValues("webhook", "failure")); got-before != 1 {
		t.Errorf("failure delta = %v", got-before)
	}

	before = testutil.ToFloat64(RestoresTotal.WithLabelValues("partial", "success"))
	RecordRestore("partial", true, time.Minute)
	if got := testutil.ToFloat64(RestoresTotal.WithLabelValues("partial", "success")); got-before != 1 {
		t.Errorf("restore success delta = %v", got-before)
	}
}

func TestWriteTextfile(t *testing.T) {
	RecordGDPRDeletion("soft", "completed")

	path := filepath.Join(t.TempDir(), "tenantvault.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `tenantvault_gdpr_deletions_total{status="completed",type="soft"}`) {
		t.Errorf("textfile missing gdpr counter:\n%s", data)
	}
}

func TestHandler(t *testing.T) {
	RecordObjectStoreError("put")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "tenantvault_object_store_errors_total") {
		t.Errorf("Handler() status = %d", rec.Code)
	}
}
