package dialect

import "testing"

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driver   string
		wantName string
		wantErr  bool
	}{
		{"sqlite", "sqlite", false},
		{"sqlite3", "sqlite", false},
		{"postgres", "postgres", false},
		{"pgx", "postgres", false},
		{"mysql", "mysql", false},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := FromDriverName(tt.driver)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FromDriverName(%q) error = nil, want error", tt.driver)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromDriverName(%q) error = %v", tt.driver, err)
			}
			if d.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", d.Name(), tt.wantName)
			}
		})
	}
}

func TestPostgresRebind(t *testing.T) {
	d, err := FromDriverName("postgres")
	if err != nil {
		t.Fatalf("FromDriverName() error = %v", err)
	}

	got := d.Rebind("SELECT * FROM sessions WHERE id = ? AND status = ?")
	want := "SELECT * FROM sessions WHERE id = $1 AND status = $2"
	if got != want {
		t.Errorf("Rebind() = %q, want %q", got, want)
	}
}

func TestSQLiteRebindIsIdentity(t *testing.T) {
	d, err := FromDriverName("sqlite")
	if err != nil {
		t.Fatalf("FromDriverName() error = %v", err)
	}

	q := "INSERT INTO sessions (id) VALUES (?)"
	if got := d.Rebind(q); got != q {
		t.Errorf("Rebind() = %q, want unchanged", got)
	}
}

func TestUpsertClause(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"sqlite", "ON CONFLICT(id) DO UPDATE SET status=excluded.status, completed_at=excluded.completed_at"},
		{"postgres", "ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, completed_at = EXCLUDED.completed_at"},
		{"mysql", "ON DUPLICATE KEY UPDATE status = VALUES(status), completed_at = VALUES(completed_at)"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := FromDriverName(tt.driver)
			if err != nil {
				t.Fatalf("FromDriverName() error = %v", err)
			}
			got := d.UpsertClause("id", []string{"status", "completed_at"})
			if got != tt.want {
				t.Errorf("UpsertClause() = %q, want %q", got, tt.want)
			}
		})
	}
}
