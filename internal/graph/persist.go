package graph

import (
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/rdavison/dune/internal/bpath"
)

// Codec is a {serialize, deserialize} pair for a persisted typed value.
// graph only references the codec, never a specific serialization
// library, so internal/depscan and internal/libdb can each supply their
// own (both built on internal/sexp) without graph depending on them.
type Codec[V any] struct {
	Serialize   func(V) ([]byte, error)
	Deserialize func([]byte) (V, error)
}

// VFileSpec pairs a codec with the path the value lives at.
type VFileSpec[V any] struct {
	Path  bpath.P
	Codec Codec[V]
}

// VPath loads a persisted typed value from a file, adding a dependency on
// that file. root resolves spec.Path to a real filesystem location.
func VPath[V any](root string, spec VFileSpec[V]) Node[V] {
	return Node[V]{run: func(r *Realizer) (V, error) {
		var zero V
		r.addInput(spec.Path)
		b, err := os.ReadFile(filepath.Join(root, spec.Path.String()))
		if err != nil {
			return zero, xerrors.Errorf("vpath(%s): %w", spec.Path, err)
		}
		v, err := spec.Codec.Deserialize(b)
		if err != nil {
			return zero, xerrors.Errorf("vpath(%s): decode: %w", spec.Path, err)
		}
		return v, nil
	}}
}

// StoreVFile declares that a computed value be persisted to disk under a
// typed schema. It returns a Node producing the terminal Action, with
// spec.Path registered as an extra target via the returned rule's
// realization, so callers need not pass it to Emit's extraTargets.
func StoreVFile[V any](root string, spec VFileSpec[V], value Node[V]) Node[Action] {
	return Node[Action]{run: func(r *Realizer) (Action, error) {
		v, err := value.run(r)
		if err != nil {
			return nil, err
		}
		r.addExtraTarget(spec.Path)
		return func() error {
			b, err := spec.Codec.Serialize(v)
			if err != nil {
				return xerrors.Errorf("store_vfile(%s): encode: %w", spec.Path, err)
			}
			dest := filepath.Join(root, spec.Path.String())
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
			return renameio.WriteFile(dest, b, 0644)
		}, nil
	}}
}
