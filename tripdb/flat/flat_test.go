package flat

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	f := NewFlatWithRoot(t.TempDir())
	err := f.WriteFileAtomic("out.txt", func(w io.Writer) error {
		_, err := w.Write([]byte("hello"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(f.Path(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestWriteFileAtomicFailureLeavesNothing(t *testing.T) {
	f := NewFlatWithRoot(t.TempDir())
	err := f.WriteFileAtomic("out.txt", func(w io.Writer) error {
		w.Write([]byte("partial"))
		return fmt.Errorf("synthetic write failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(f.Path(), "out.txt")); !os.IsNotExist(err) {
		t.Fatal("final name must not exist after failed write")
	}
	// No temp litter either.
	matches, _ := f.Glob("*")
	if len(matches) != 0 {
		t.Fatalf("expected empty dir, got %v", matches)
	}
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	f := NewFlatWithRoot(t.TempDir())
	for _, content := range []string{"one", "two"} {
		content := content
		err := f.WriteFileAtomic("out.txt", func(w io.Writer) error {
			_, err := io.WriteString(w, content)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	got, _ := os.ReadFile(filepath.Join(f.Path(), "out.txt"))
	if string(got) != "two" {
		t.Fatalf("got %q", got)
	}
}

func TestJoiningDoesNotMutate(t *testing.T) {
	root := NewFlatWithRoot(t.TempDir())
	before := root.Path()
	sub := root.Joining("a", "b")
	if root.Path() != before {
		t.Fatal("Joining must not mutate the receiver")
	}
	if sub.Path() != filepath.Join(before, "a", "b") {
		t.Fatalf("got %q", sub.Path())
	}
}
