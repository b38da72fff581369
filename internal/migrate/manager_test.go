package migrate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	sql := `create table a (id text);
insert into a values ('x;y');
create index i on a(id);`
	stmts := splitStatements(sql)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if want := `insert into a values ('x;y');`; stmts[1] != "\n"+want {
		t.Fatalf("semicolon inside string split wrongly: %q", stmts[1])
	}
}

func TestCollectOrdersLexically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := collect(dir, ".up.sql")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 2 || files[0].base != "0001_a.up.sql" || files[1].base != "0002_b.up.sql" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestCollectMissingDir(t *testing.T) {
	files, err := collect(filepath.Join(t.TempDir(), "absent"), ".up.sql")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if files != nil {
		t.Fatalf("expected nil, got %+v", files)
	}
}
