// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

/*
Package backup produces tenant backup artifacts and expires old ones.

Backup Flow (one tenant):
 1. Dump tenant_<id> through the pgdriver (full and snapshot: whole schema,
    incremental: rows with updated_at in the last 24h)
 2. Encode the dump with the archive codec (gzip, optional AES-256-CBC)
 3. Write tenant_{id}_{type}_{yyyy-MM-dd-HH-mm-ss}.sql.gz[.enc] to the backup directory
 4. Upload to the object store under backups/{type}/{yyyy/MM/dd}/{id}/{file}
 5. Persist the BackupArtifact; completed only after the upload succeeded

A failure at any step marks the artifact failed with the error text; it never
aborts the rest of a batch.

Batches:
BackupMany splits tenants into chunks of MaxParallel (default 3). Chunks run one
after another; the tenants of a chunk run concurrently. When the batch is done,
one batched failure Event lists every failed tenant. Events are returned in the
Result and delivered by the caller's notify.Dispatcher.

Retention:
Sweeper removes artifacts older than the per-type retention window. The local
file and the metadata row are deleted; remote objects are kept unless
DeleteRemote is set.
*/
package backup
