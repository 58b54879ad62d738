package local

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", DefaultFile))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	store := newTestStore(t)

	info, err := os.Stat(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory, got file")
	}
}

func TestStore_SetGet(t *testing.T) {
	store := newTestStore(t)

	type layout struct {
		Columns int    `json:"columns"`
		Font    string `json:"font"`
	}

	if err := store.Set("layout", layout{Columns: 2, Font: "mono"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got layout
	if err := store.Get("layout", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Columns != 2 || got.Font != "mono" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	var v string
	if err := store.Get("missing", &v); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v; want ErrNotFound", err)
	}

	b, err := store.GetBool("darkMode")
	if err != nil || b != nil {
		t.Errorf("GetBool() = %v, %v; want nil, nil", b, err)
	}
}

func TestStore_GetBool(t *testing.T) {
	store := newTestStore(t)

	for _, want := range []bool{true, false} {
		if err := store.Set("darkMode", want); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := store.GetBool("darkMode")
		if err != nil {
			t.Fatalf("GetBool() error = %v", err)
		}
		if got == nil || *got != want {
			t.Errorf("GetBool() = %v; want %v", got, want)
		}
	}
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	first, _ := NewStore(path)
	if err := first.Set("darkMode", true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	second, _ := NewStore(path)
	got, err := second.GetBool("darkMode")
	if err != nil || got == nil || !*got {
		t.Errorf("GetBool() = %v, %v; want true", got, err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	_ = store.Set("a", 1)

	if err := store.Delete("a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v; want ErrNotFound", err)
	}
}

func TestStore_Keys(t *testing.T) {
	store := newTestStore(t)
	_ = store.Set("b", 1)
	_ = store.Set("a", 2)

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v; want [a b]", keys)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetBool("darkMode"); err == nil {
		t.Error("GetBool() on corrupt file should fail")
	}
}

func TestStore_ConcurrentSet(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := store.Set(string(rune('a'+n)), n); err != nil {
				t.Errorf("Set() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	keys, _ := store.Keys()
	if len(keys) != 10 {
		t.Errorf("len(Keys()) = %d; want 10", len(keys))
	}
}
