// Package snapshots persists observed server statuses in SQLite.
//
// The panel records every lifecycle change so a restarted daemon can show the
// last known state immediately (marked stale) and so operators can review the
// transition history. Unchanged polls are not written.
package snapshots
