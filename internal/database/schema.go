package database

// CurrentSchemaVersion is the version produced by Chain.
const CurrentSchemaVersion = 6

func pk() Column {
	return Column{Name: "id", Type: "INTEGER PRIMARY KEY AUTOINCREMENT"}
}

func text(name string) Column {
	return Column{Name: name, Type: "TEXT", NotNull: true, Default: "''"}
}

func flag(name string) Column {
	return Column{Name: name, Type: "INTEGER", NotNull: true, Default: "0"}
}

func millis(name string) Column {
	return Column{Name: name, Type: "INTEGER", NotNull: true, Default: "0"}
}

func nullable(name, typ string) Column {
	return Column{Name: name, Type: typ, Default: "NULL"}
}

// Chain returns the journal schema history, one migration per version edge.
// Published migrations are never edited; add a new step instead.
func Chain() []Migration {
	return []Migration{
		{
			From: 0, To: 1, Name: "base_schema",
			Ops: []Operation{
				CreateTable{Name: "moods", Columns: []Column{
					pk(),
					{Name: "label", Type: "TEXT", NotNull: true},
					{Name: "level", Type: "TEXT", NotNull: true, Default: "'NEUTRAL'"},
					text("emoji"),
					text("color"),
					millis("created_at"),
				}},
				CreateTable{Name: "journal_entries", Columns: []Column{
					pk(),
					text("title"),
					text("content"),
					millis("created_at"),
					millis("updated_at"),
					{Name: "mood_id", Type: "INTEGER", References: "moods(id) ON DELETE SET NULL"},
					text("mood_label"),
					{Name: "mood_level", Type: "TEXT", NotNull: true, Default: "'NEUTRAL'"},
					{Name: "tags_json", Type: "TEXT", NotNull: true, Default: "'[]'"},
					text("tags_flat"),
					flag("is_favorite"),
				}},
				CreateTable{Name: "tags", Columns: []Column{
					pk(),
					{Name: "label", Type: "TEXT", NotNull: true},
					millis("created_at"),
				}, Constraints: []string{"UNIQUE (label)"}},
				CreateTable{Name: "entry_tags", Columns: []Column{
					{Name: "entry_id", Type: "INTEGER", NotNull: true, References: "journal_entries(id) ON DELETE CASCADE"},
					{Name: "tag_id", Type: "INTEGER", NotNull: true, References: "tags(id) ON DELETE CASCADE"},
				}, Constraints: []string{"PRIMARY KEY (entry_id, tag_id)"}},
				CreateIndex{Name: "idx_entry_tags_tag", Table: "entry_tags", Columns: []string{"tag_id"}},
				CreateTable{Name: "notification_log", Columns: []Column{
					pk(),
					text("title"),
					text("message"),
					{Name: "status", Type: "TEXT", NotNull: true},
					millis("created_at"),
				}},
				CreateIndex{Name: "idx_notification_log_created", Table: "notification_log", Columns: []string{"created_at"}},
			},
		},
		{
			From: 1, To: 2, Name: "media_and_entry_encryption",
			Ops: []Operation{
				CreateTable{Name: "media_attachments", Columns: []Column{
					{Name: "id", Type: "TEXT PRIMARY KEY"},
					{Name: "entry_id", Type: "INTEGER", References: "journal_entries(id) ON DELETE CASCADE"},
					{Name: "type", Type: "TEXT", NotNull: true},
					{Name: "file_path", Type: "TEXT", NotNull: true},
					flag("encrypted"),
					nullable("nonce", "TEXT"),
					nullable("tag_location", "TEXT"),
					millis("created_at"),
				}},
				CreateIndex{Name: "idx_media_entry", Table: "media_attachments", Columns: []string{"entry_id"}},
				AddColumn{Table: "journal_entries", Column: flag("is_encrypted")},
			},
		},
		{
			From: 2, To: 3, Name: "prompts_emotions_factors",
			Ops: []Operation{
				AddColumn{Table: "journal_entries", Column: nullable("prompt_id", "INTEGER")},
				AddColumn{Table: "journal_entries", Column: text("prompt_title")},
				AddColumn{Table: "journal_entries", Column: text("prompt_description")},
				AddColumn{Table: "journal_entries", Column: Column{Name: "secondary_emotions", Type: "TEXT", NotNull: true, Default: "'[]'"}},
				AddColumn{Table: "journal_entries", Column: Column{Name: "factors", Type: "TEXT", NotNull: true, Default: "'[]'"}},
			},
		},
		{
			From: 3, To: 4, Name: "pinned_entries",
			Ops: []Operation{
				AddColumn{Table: "journal_entries", Column: flag("is_pinned")},
			},
		},
		{
			From: 4, To: 5, Name: "mood_color_hex",
			Ops: []Operation{
				NoOp{Reason: "mood colors are written as #RRGGBB, storage unchanged"},
			},
		},
		{
			From: 5, To: 6, Name: "context_and_trackers",
			Ops: []Operation{
				AddColumn{Table: "journal_entries", Column: flag("is_synced")},
				AddColumn{Table: "journal_entries", Column: nullable("location_lat", "REAL")},
				AddColumn{Table: "journal_entries", Column: nullable("location_lon", "REAL")},
				AddColumn{Table: "journal_entries", Column: nullable("location_name", "TEXT")},
				AddColumn{Table: "journal_entries", Column: nullable("weather_temp", "REAL")},
				AddColumn{Table: "journal_entries", Column: nullable("weather_condition", "TEXT")},
				CreateIndex{Name: "idx_entries_created", Table: "journal_entries", Columns: []string{"created_at", "id"}},
				CreateTable{Name: "goals", Columns: []Column{
					pk(),
					{Name: "title", Type: "TEXT", NotNull: true},
					text("description"),
					{Name: "target", Type: "INTEGER", NotNull: true, Default: "1"},
					{Name: "progress", Type: "INTEGER", NotNull: true, Default: "0"},
					flag("completed"),
					nullable("deadline", "INTEGER"),
					millis("created_at"),
					millis("updated_at"),
				}},
				CreateTable{Name: "habits", Columns: []Column{
					pk(),
					{Name: "name", Type: "TEXT", NotNull: true},
					{Name: "frequency", Type: "TEXT", NotNull: true, Default: "'DAILY'"},
					{Name: "current_streak", Type: "INTEGER", NotNull: true, Default: "0"},
					{Name: "best_streak", Type: "INTEGER", NotNull: true, Default: "0"},
					nullable("last_completed_at", "INTEGER"),
					millis("created_at"),
				}},
				CreateTable{Name: "achievements", Columns: []Column{
					pk(),
					{Name: "code", Type: "TEXT", NotNull: true},
					text("title"),
					text("description"),
					nullable("unlocked_at", "INTEGER"),
				}, Constraints: []string{"UNIQUE (code)"}},
			},
		},
	}
}
