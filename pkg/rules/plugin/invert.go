package plugin

import (
	"fmt"
	"strings"

	ruleerrors "forgeline/anvil/pkg/rules/errors"
)

// ParseInverted splits a condition op into its plugin name and inversion
// flag. Exactly one leading "!" inverts the verdict; a second one is a
// validation error. Surrounding whitespace is ignored.
func ParseInverted(op string) (string, bool, error) {
	name := strings.TrimSpace(op)
	if !strings.HasPrefix(name, "!") {
		return name, false, nil
	}
	name = strings.TrimSpace(strings.TrimPrefix(name, "!"))
	if strings.HasPrefix(name, "!") {
		return "", false, &ruleerrors.Error{
			Type:    ruleerrors.TypeSemantic,
			Op:      op,
			Message: fmt.Sprintf("multiple inversion markers in op %q", op),
		}
	}
	return name, true, nil
}
