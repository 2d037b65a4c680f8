package sandbox

import (
	"regexp"
)

// Preprocessor rewrites quoted public-output path literals in user code into
// filenames relative to the workspace, so generated artifacts land inside the
// isolated directory instead of escaping it via an absolute path. This is a
// pure text transformation and not a security boundary: the child process
// keeps the filesystem access of its user.
type Preprocessor struct {
	withDir    *regexp.Regexp
	withoutDir *regexp.Regexp
}

// NewPreprocessor builds a Preprocessor for the given public URL prefix
// (e.g. "/static/outputs").
func NewPreprocessor(publicPrefix string) *Preprocessor {
	prefix := regexp.QuoteMeta(publicPrefix)
	return &Preprocessor{
		// '/static/outputs/<anything>/<name>' -> '<name>'
		withDir: regexp.MustCompile(`['"]` + prefix + `/[^'"]*/([^'"]+)['"]`),
		// '/static/outputs/<name>' -> '<name>'
		withoutDir: regexp.MustCompile(`['"]` + prefix + `/([^'"]+)['"]`),
	}
}

// RewriteOutputPaths replaces both forms of the public prefix, with and
// without a category segment, leaving all other string literals untouched.
func (p *Preprocessor) RewriteOutputPaths(code string) string {
	processed := p.withDir.ReplaceAllString(code, "'${1}'")
	return p.withoutDir.ReplaceAllString(processed, "'${1}'")
}
