package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

//go:embed classes.cue
var classesCUE string

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(classesCUE, cue.Filename("classes.cue")))
})

// Default returns the registry compiled from the embedded class definitions.
// It is compiled once per process.
func Default() (*Registry, error) {
	return defaultRegistry()
}

// LoadDir unifies the CUE package in dir with the embedded definitions and
// compiles the result. The embedded order list cannot be extended, so
// classes added this way are applied in the final bucket.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("classes directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("classes directory: not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	base := ctx.CompileString(classesCUE, cue.Filename("classes.cue"))
	if err := base.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	extra := ctx.BuildInstance(inst)
	if err := extra.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return Compile(base.Unify(extra))
}
