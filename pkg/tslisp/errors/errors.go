// Package errors provides structured error types for the tslisp language.
//
// LispError is the single error shape shared by the parser and the evaluator.
// Errors are created from a catalog of codes so that messages stay consistent
// and can be matched programmatically.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassParse     ErrorClass = "parse"     // Parser/syntax errors
	ClassType      ErrorClass = "type"      // Type mismatches
	ClassArity     ErrorClass = "arity"     // Wrong argument count
	ClassUndefined ErrorClass = "undefined" // Not found/defined
	ClassIndex     ErrorClass = "index"     // Out of bounds
	ClassKey       ErrorClass = "key"       // Missing dictionary key
	ClassOperator  ErrorClass = "operator"  // Invalid operations
	ClassState     ErrorClass = "state"     // Invalid state
	ClassThrow     ErrorClass = "throw"     // Uncaught user throw
	ClassImport    ErrorClass = "import"    // Module loading
	ClassDatabase  ErrorClass = "database"  // DB operations
	ClassExternal  ErrorClass = "external"  // Text services
)

// LispError represents any error from parsing or evaluation.
type LispError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`   // 1-based line (0 if unknown)
	Column  int            `json:"column"` // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *LispError) Error() string {
	return e.String()
}

// location renders "file: line L, column C: " with the unknown parts left out.
func (e *LispError) location() string {
	loc := ""
	if e.File != "" {
		loc = e.File + ": "
	}
	if e.Line > 0 {
		loc += fmt.Sprintf("line %d, column %d: ", e.Line, e.Column)
	}
	return loc
}

// String returns a one-line representation with location prefix and hints.
func (e *LispError) String() string {
	parts := append([]string{e.location() + e.Message}, e.Hints...)
	return strings.Join(parts, "\n  ")
}

// PrettyString returns the multi-line form shown by the CLI and REPL:
//
//	Runtime error:
//	  in: main.tsl
//	  at: line 3, column 1
//	  get: index 5 out of range [0, 3)
//	  Use: ...
func (e *LispError) PrettyString() string {
	title := "Runtime error"
	if e.IsParseError() {
		title = "Parser error"
	}

	lines := []string{}
	switch {
	case e.File != "":
		lines = append(lines, title+":", "  in: "+e.File)
		if e.Line > 0 {
			lines = append(lines, fmt.Sprintf("  at: line %d, column %d", e.Line, e.Column))
		}
	case e.Line > 0:
		lines = append(lines, fmt.Sprintf("%s: line %d, column %d", title, e.Line, e.Column))
	default:
		lines = append(lines, title+":")
	}
	lines = append(lines, "  "+e.Message)

	for i, hint := range e.Hints {
		prefix := "   or: "
		if i == 0 {
			prefix = "  Use: "
		}
		lines = append(lines, prefix+hint)
	}
	return strings.Join(lines, "\n")
}

// ToJSON returns the error as JSON bytes.
func (e *LispError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy with File set.
func (e *LispError) WithFile(file string) *LispError {
	c := *e
	c.File = file
	return &c
}

// WithPosition returns a copy with Line and Column set.
func (e *LispError) WithPosition(line, column int) *LispError {
	c := *e
	c.Line, c.Column = line, column
	return &c
}

// IsParseError returns true if this is a parser error.
func (e *LispError) IsParseError() bool {
	return e.Class == ClassParse
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string   // Message template with {{.placeholders}}
	Hints    []string // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Parse errors
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "unexpected end of input: missing ')'",
		Hints:    []string{"every '(' needs a matching ')'"},
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected '{{.Token}}'",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "unterminated string",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "unterminated template",
		Hints:    []string{"close the template with '}'"},
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "invalid macro pattern {{.Pattern}}: {{.Err}}",
	},

	// Type errors
	"TYPE-0001": {
		Class:    ClassType,
		Template: "{{.Function}} expected {{.Expected}}, got {{.Got}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "argument to `{{.Function}}` not supported, got {{.Got}}",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "cannot call {{.Got}} as a function",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: "special form `{{.Function}}` cannot be applied to values",
		Hints:    []string{"wrap it in a lambda: (lambda (x) ({{.Function}} x))"},
	},
	"TYPE-0005": {
		Class:    ClassType,
		Template: "parameter `{{.Param}}` of {{.Function}} requires {{.Expected}}, got {{.Got}}",
	},
	"TYPE-0006": {
		Class:    ClassType,
		Template: "{{.Function}}: dictionary keys must be strings, got {{.Got}}",
	},
	"TYPE-0007": {
		Class:    ClassType,
		Template: "cannot iterate over {{.Got}}",
		Hints:    []string{"foreach works with lists, arrays, dictionaries and strings"},
	},
	"TYPE-0008": {
		Class:    ClassType,
		Template: "{{.Function}}: {{.Name}} is not a number, got {{.Got}}",
	},
	"TYPE-0009": {
		Class:    ClassType,
		Template: "{{.Function}}: invalid syntax, {{.Reason}}",
	},

	// Arity errors
	"ARITY-0001": {
		Class:    ClassArity,
		Template: "wrong number of arguments to `{{.Function}}`. got={{.Got}}, want={{.Want}}",
	},
	"ARITY-0002": {
		Class:    ClassArity,
		Template: "wrong number of arguments to `{{.Function}}`. got={{.Got}}, want at least {{.Min}}",
	},
	"ARITY-0003": {
		Class:    ClassArity,
		Template: "wrong number of arguments to `{{.Function}}`. got={{.Got}}, want {{.Min}}-{{.Max}}",
	},
	"ARITY-0004": {
		Class:    ClassArity,
		Template: "`{{.Function}}` needs an even number of arguments, got {{.Got}}",
	},

	// Undefined errors
	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "identifier not found: {{.Name}}",
	},
	"UNDEF-0002": {
		Class:    ClassUndefined,
		Template: "undefined class: {{.Name}}",
	},
	"UNDEF-0003": {
		Class:    ClassUndefined,
		Template: "{{.Function}}: no binding for {{.Name}} in scope",
		Hints:    []string{"use (define {{.Name}} ...) first"},
	},
	"UNDEF-0004": {
		Class:    ClassUndefined,
		Template: "{{.Type}} has no property `{{.Name}}`",
	},
	"UNDEF-0005": {
		Class:    ClassUndefined,
		Template: "{{.Type}} has no method `{{.Name}}`",
	},
	"UNDEF-0006": {
		Class:    ClassUndefined,
		Template: "no child `{{.Name}}` on {{.Type}}",
	},

	// Index errors
	"INDEX-0001": {
		Class:    ClassIndex,
		Template: "{{.Function}}: index {{.Index}} out of range [0, {{.Length}})",
	},
	"INDEX-0002": {
		Class:    ClassIndex,
		Template: "{{.Function}}: index {{.Index}} out of range at dimension {{.Dim}} (size {{.Length}})",
	},
	"INDEX-0003": {
		Class:    ClassIndex,
		Template: "{{.Function}}: list is empty",
	},

	// Key errors
	"KEY-0001": {
		Class:    ClassKey,
		Template: "{{.Function}}: key {{.Key}} not found",
	},

	// Operator errors
	"OP-0001": {
		Class:    ClassOperator,
		Template: "{{.Function}}: division by zero",
	},
	"OP-0002": {
		Class:    ClassOperator,
		Template: "{{.Function}}: {{.Reason}}",
	},

	// State errors
	"STATE-0001": {
		Class:    ClassState,
		Template: "cannot redefine builtin `{{.Name}}`",
	},
	"STATE-0002": {
		Class:    ClassState,
		Template: "cannot reassign constant `{{.Name}}`",
	},
	"STATE-0003": {
		Class:    ClassState,
		Template: "maximum call depth {{.Max}} exceeded",
		Hints:    []string{"check for unbounded recursion", "raise interpreter.max_depth in tslisp.yaml"},
	},
	"STATE-0004": {
		Class:    ClassState,
		Template: "cannot access private field `{{.Name}}` of struct {{.Struct}}",
	},
	"STATE-0005": {
		Class:    ClassState,
		Template: "cannot attach children to the {{.Type}} singleton",
	},

	// Throw errors
	"THROW-0001": {
		Class:    ClassThrow,
		Template: "uncaught throw: {{.Payload}}",
		Hints:    []string{"(try <body> <handler>) binds the payload to `error`"},
	},

	// Import errors
	"IMPORT-0001": {
		Class:    ClassImport,
		Template: "cannot import {{.Name}}: {{.Err}}",
	},
	"IMPORT-0002": {
		Class:    ClassImport,
		Template: "circular import of {{.Name}}",
	},
	"IMPORT-0003": {
		Class:    ClassImport,
		Template: "import of {{.Name}} is outside the allowed roots",
	},
	"IMPORT-0004": {
		Class:    ClassImport,
		Template: "parse errors in {{.Name}}: {{.Err}}",
	},

	// Database errors
	"DB-0001": {
		Class:    ClassDatabase,
		Template: "unsupported database driver {{.Driver}}",
		Hints:    []string{"supported drivers: sqlite, postgres, mysql"},
	},
	"DB-0002": {
		Class:    ClassDatabase,
		Template: "{{.Driver}}: {{.Err}}",
	},
	"DB-0003": {
		Class:    ClassDatabase,
		Template: "connection is closed",
	},

	// External service errors
	"EXT-0001": {
		Class:    ClassExternal,
		Template: "{{.Function}}: no text service configured",
		Hints:    []string{"set llm.api_key in tslisp.yaml"},
	},
	"EXT-0002": {
		Class:    ClassExternal,
		Template: "{{.Function}}: {{.Err}}",
	},
	"EXT-0003": {
		Class:    ClassExternal,
		Template: "{{.Function}}: cannot parse {{.Input}}",
	},
}

// New creates a LispError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *LispError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &LispError{
			Class:   ClassType,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &LispError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a LispError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *LispError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// NewSimple creates a simple error without using the catalog.
func NewSimple(class ErrorClass, message string) *LispError {
	return &LispError{
		Class:   class,
		Message: message,
	}
}

func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// threshold scales the accepted edit distance with the input length.
func threshold(input string) int {
	switch {
	case len(input) >= 7:
		return 3
	case len(input) >= 4:
		return 2
	default:
		return 1
	}
}

// FindClosestMatch finds the closest candidate to input, or "" when nothing
// is close enough to be a plausible typo.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	inputLower := strings.ToLower(input)

	var bestMatch string
	bestDistance := -1

	// Candidates come from map iteration in the environment; sort for stable hints.
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	for _, candidate := range sorted {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance <= 0 || bestDistance > threshold(input) {
		return ""
	}

	return bestMatch
}

// NewUndefinedName creates an undefined identifier error with a
// "Did you mean" hint when a close candidate exists.
func NewUndefinedName(name string, candidates []string) *LispError {
	err := New("UNDEF-0001", map[string]any{"Name": name})

	if suggestion := FindClosestMatch(name, candidates); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}

	return err
}
