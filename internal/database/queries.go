/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	schema = `
	-- Activity entries, one row per entry pushed to the in-memory log
	CREATE TABLE IF NOT EXISTS activity (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		tx_hash TEXT NOT NULL DEFAULT ''
	);

	-- Newest-first listing
	CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity(created_at);
	-- Lookups by transaction
	CREATE INDEX IF NOT EXISTS idx_activity_tx_hash ON activity(tx_hash);
	`

	queryInsertActivity = `
		INSERT INTO activity (id, created_at, kind, title, detail, tx_hash)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryListActivity = `
		SELECT id, created_at, kind, title, detail, tx_hash
		FROM activity
		WHERE (? = '' OR kind = ?)
		  AND (? = '' OR tx_hash = ?)
		  AND created_at >= ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryCountActivity = `
		SELECT COUNT(*) FROM activity`
)
