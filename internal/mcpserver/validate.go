package mcpserver

import (
	"fmt"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// validateNotePath checks a vault-relative note path: non-empty, .md
// suffix, no absolute paths, no traversal outside the vault root.
func validateNotePath(p string) error {
	if err := validation.Validate(p,
		validation.Required,
		validation.By(relativePath),
	); err != nil {
		return fmt.Errorf("invalid path %q: %w", p, err)
	}
	if !strings.HasSuffix(p, ".md") {
		return fmt.Errorf("invalid path %q: must end with .md", p)
	}
	return nil
}

// validateFolder checks a vault-relative folder path.
func validateFolder(p string) error {
	if err := validation.Validate(p, validation.By(relativePath)); err != nil {
		return fmt.Errorf("invalid folder %q: %w", p, err)
	}
	return nil
}

func relativePath(value interface{}) error {
	s, _ := value.(string)
	if strings.HasPrefix(s, "/") {
		return fmt.Errorf("must be vault-relative")
	}
	cleaned := path.Clean(s)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("must not escape the vault root")
	}
	return nil
}
