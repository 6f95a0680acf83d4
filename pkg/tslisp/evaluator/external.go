package evaluator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	perrors "github.com/sambeau/tslisp/pkg/tslisp/errors"
	"github.com/sambeau/tslisp/pkg/tslisp/lexer"
	"github.com/sambeau/tslisp/pkg/tslisp/parser"
)

// TextService answers free-text prompts for LLM and AI.
type TextService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SourceLoader reads the source named by an import. from is the importing
// file, empty at top level. It returns the source and its resolved path.
type SourceLoader interface {
	Load(name, from string) (src string, resolved string, err error)
}

// ErrOutsideRoots is returned by FileLoader for paths that escape every root.
var ErrOutsideRoots = errors.New("path is outside the import roots")

// ScriptExt is appended to import names that have no extension.
const ScriptExt = ".tsl"

// FileLoader loads imports from the file system. Relative names resolve
// against the importing file's directory, or the working directory at top
// level. When Roots is non-empty every resolved path must lie inside one.
type FileLoader struct {
	Roots []string
}

// Load implements SourceLoader.
func (f *FileLoader) Load(name, from string) (string, string, error) {
	path := name
	if !filepath.IsAbs(path) {
		base := "."
		if from != "" {
			base = filepath.Dir(from)
		}
		path = filepath.Join(base, path)
	}
	if filepath.Ext(path) == "" {
		path += ScriptExt
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	if !f.allowed(abs) {
		return "", abs, ErrOutsideRoots
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", abs, err
	}
	return string(data), abs, nil
}

func (f *FileLoader) allowed(path string) bool {
	if len(f.Roots) == 0 {
		return true
	}
	for _, root := range f.Roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func registerExternalBuiltins() {
	registerBuiltin("LLM", builtinLLM("LLM"))
	registerBuiltin("AI", builtinLLM("AI"))
	registerBuiltin("import", builtinImport)
}

func builtinLLM(name string) BuiltinFunction {
	return func(env *Environment, args ...Object) Object {
		if len(args) == 0 {
			return newArityErrorMin(env, name, 0, 1)
		}
		svc := env.TextService()
		if svc == nil {
			return newError(env, "EXT-0001", map[string]any{"Function": name})
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = Text(a)
		}
		reply, err := svc.Complete(env.Context(), strings.Join(parts, " "))
		if err != nil {
			return newError(env, "EXT-0002", map[string]any{"Function": name, "Err": err.Error()})
		}
		return &String{Value: reply}
	}
}

// builtinImport evaluates another source file in the current environment
// and returns its last value.
func builtinImport(env *Environment, args ...Object) Object {
	if len(args) != 1 {
		return newArityError(env, "import", len(args), 1)
	}
	name, ok := args[0].(*String)
	if !ok {
		return newTypeError(env, "import", "a String path", args[0])
	}

	loader := env.Loader()
	if loader == nil {
		loader = &FileLoader{}
	}
	from := env.Filename
	if n := len(env.rt.importStack); n > 0 {
		from = env.rt.importStack[n-1]
	}

	src, resolved, err := loader.Load(name.Value, from)
	switch {
	case errors.Is(err, ErrOutsideRoots):
		return newError(env, "IMPORT-0003", map[string]any{"Name": name.Value})
	case err != nil:
		return newError(env, "IMPORT-0001", map[string]any{"Name": name.Value, "Err": err.Error()})
	}
	if slices.Contains(env.rt.importStack, resolved) || sameFile(env.Filename, resolved) {
		return newError(env, "IMPORT-0002", map[string]any{"Name": name.Value})
	}

	exprs, errs := parser.Parse(lexer.Expand(src, env.Macros()), resolved)
	if len(errs) > 0 {
		return newError(env, "IMPORT-0004", map[string]any{"Name": name.Value, "Err": joinErrors(errs)})
	}

	env.rt.importStack = append(env.rt.importStack, resolved)
	defer func() { env.rt.importStack = env.rt.importStack[:len(env.rt.importStack)-1] }()

	var result Object = NONE
	for _, e := range exprs {
		result = Eval(e, env)
		if isSignal(result) {
			return result
		}
	}
	return result
}

func sameFile(a, b string) bool {
	if a == "" {
		return false
	}
	abs, err := filepath.Abs(a)
	return err == nil && abs == b
}

func joinErrors(errs []*perrors.LispError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return strings.Join(msgs, "; ")
}
