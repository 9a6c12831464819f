// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "fmt"

// recordsTableName returns the metadata table name for a content table.
// sqlite-vec's vec0 virtual table only carries the id/embedding columns, so
// everything else (embeddingText, the Fields bag) lives in a plain SQLite
// table of the same name, joined back to the vec0 and FTS5 shadow tables by
// row id.
func recordsTableName(table string) string { return table }
func vecTableName(table string) string     { return table + "_vec" }
func ftsTableName(table string) string      { return table + "_fts" }

// tableSchemaSQL returns the DDL for one content table: the metadata table,
// its vec0 virtual table (cosine k-NN) and its FTS5 virtual table (full
// text), plus triggers keeping the FTS index in sync with the metadata
// table. Mirrors the teacher's chunks/vec_chunks/chunks_fts split.
func tableSchemaSQL(table string, dim int) string {
	records := recordsTableName(table)
	vec := vecTableName(table)
	fts := ftsTableName(table)

	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	rowid INTEGER PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	embedding_text TEXT NOT NULL,
	fields TEXT NOT NULL DEFAULT '{}'
);

CREATE VIRTUAL TABLE IF NOT EXISTS %[2]s USING vec0(
	row_id INTEGER PRIMARY KEY,
	embedding float[%[4]d] distance_metric=cosine
);

CREATE VIRTUAL TABLE IF NOT EXISTS %[3]s USING fts5(
	embedding_text,
	content='%[1]s',
	content_rowid='rowid',
	tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS %[1]s_ai AFTER INSERT ON %[1]s BEGIN
	INSERT INTO %[3]s(rowid, embedding_text) VALUES (new.rowid, new.embedding_text);
END;
CREATE TRIGGER IF NOT EXISTS %[1]s_ad AFTER DELETE ON %[1]s BEGIN
	INSERT INTO %[3]s(%[3]s, rowid, embedding_text) VALUES ('delete', old.rowid, old.embedding_text);
	DELETE FROM %[2]s WHERE row_id = old.rowid;
END;
CREATE TRIGGER IF NOT EXISTS %[1]s_au AFTER UPDATE ON %[1]s BEGIN
	INSERT INTO %[3]s(%[3]s, rowid, embedding_text) VALUES ('delete', old.rowid, old.embedding_text);
	INSERT INTO %[3]s(rowid, embedding_text) VALUES (new.rowid, new.embedding_text);
END;
`, records, vec, fts, dim)
}
