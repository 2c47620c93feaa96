package metrics

import (
	"strings"

	"github.com/prometheus/common/expfmt"
)

// ExportText renders every registered metric in Prometheus text
// exposition format: one HELP line, one TYPE line, then sample lines,
// per metric family.
func (r *Registry) ExportText() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	enc := expfmt.NewEncoder(&sb, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}
