package errors

import (
	"regexp"
	"strconv"
	"strings"
)

// Diagnostic is one problem extracted from the output of an external
// stylesheet compiler or postprocessor.
type Diagnostic struct {
	// Kind is the tool's error class, e.g. ParseError or CssSyntaxError.
	Kind    string
	File    string
	Line    int
	Column  int
	Message string
	Hint    string
}

type diagnosticPattern struct {
	regex       *regexp.Regexp
	parseFields func(matches []string) Diagnostic
}

var diagnosticPatterns = []diagnosticPattern{
	{
		// lessc: "ParseError: Unrecognised input in style.less on line 3, column 5:"
		regex: regexp.MustCompile(`^(\w+Error): (.+?) in (.+?) on line (\d+), column (\d+):?$`),
		parseFields: func(m []string) Diagnostic {
			return Diagnostic{Kind: m[1], Message: m[2], File: m[3], Line: atoi(m[4]), Column: atoi(m[5])}
		},
	},
	{
		// postcss: "CssSyntaxError: <css input>:1:5: Unknown word"
		regex: regexp.MustCompile(`^(CssSyntaxError): (.+?):(\d+):(\d+): (.+)$`),
		parseFields: func(m []string) Diagnostic {
			return Diagnostic{Kind: m[1], File: m[2], Line: atoi(m[3]), Column: atoi(m[4]), Message: m[5]}
		},
	},
	{
		regex: regexp.MustCompile(`^(.+?):(\d+):(\d+): (.+)$`),
		parseFields: func(m []string) Diagnostic {
			return Diagnostic{File: m[1], Line: atoi(m[2]), Column: atoi(m[3]), Message: m[4]}
		},
	},
}

var diagnosticHints = map[string]string{
	"ParseError":     "look for a missing brace or semicolon just before this position",
	"NameError":      "define the variable or mixin before it is used",
	"FileError":      "check the @import path; it is resolved relative to the importing file",
	"ArgumentError":  "check the number and type of arguments passed to the mixin or function",
	"CssSyntaxError": "the postprocess command received CSS it could not parse",
}

// ParseCompilerOutput extracts every located diagnostic from output, in the
// order they appear.
func ParseCompilerOutput(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, p := range diagnosticPatterns {
			m := p.regex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			d := p.parseFields(m)
			d.Hint = diagnosticHints[d.Kind]
			diags = append(diags, d)
			break
		}
	}
	return diags
}

// FirstDiagnostic returns the first diagnostic found in output.
func FirstDiagnostic(output string) (Diagnostic, bool) {
	diags := ParseCompilerOutput(output)
	if len(diags) == 0 {
		return Diagnostic{}, false
	}
	return diags[0], true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
