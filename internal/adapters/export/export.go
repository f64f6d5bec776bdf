package export

// export.go: vuelca una corrida a disco, un juego de archivos por ventana.

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alejandrodnm/statarb/internal/domain"
)

// WriteRun escribe trades.csv, equity.csv y equity.svg de cada ventana, más
// spread.svg cuando la corrida trae el spread y las bandas en memoria.
// Devuelve las rutas escritas.
func WriteRun(dir string, run domain.Run) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export.WriteRun: mkdir %s: %w", dir, err)
	}

	prefix := filePrefix(run)
	title := run.LegA + "/" + run.LegB
	var written []string

	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("export.WriteRun: write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	for _, res := range run.Results {
		base := fmt.Sprintf("%s_w%d", prefix, res.Window)

		var buf bytes.Buffer
		if err := WriteTradesCSV(&buf, res.Trades); err != nil {
			return written, err
		}
		if err := write(base+"_trades.csv", buf.Bytes()); err != nil {
			return written, err
		}

		buf.Reset()
		if err := WriteEquityCSV(&buf, res.EquityCurve); err != nil {
			return written, err
		}
		if err := write(base+"_equity.csv", buf.Bytes()); err != nil {
			return written, err
		}

		if svg, err := RenderEquitySVG(fmt.Sprintf("%s equity W=%d", title, res.Window), res.EquityCurve, SVGOptions{}); err == nil {
			if err := write(base+"_equity.svg", svg); err != nil {
				return written, err
			}
		} else {
			slog.Debug("equity chart skipped", "window", res.Window, "err", err)
		}

		if run.Spread.Len() == 0 || res.Bands.Defined() == 0 {
			continue
		}
		svg, err := RenderSpreadSVG(title, run.Spread, res.Bands, res.Trades, SVGOptions{})
		if err != nil {
			slog.Debug("spread chart skipped", "window", res.Window, "err", err)
			continue
		}
		if err := write(base+"_spread.svg", svg); err != nil {
			return written, err
		}
	}
	return written, nil
}

func filePrefix(run domain.Run) string {
	id := run.ID
	if i := strings.IndexByte(id, '-'); i > 0 {
		id = id[:i]
	}
	r := strings.NewReplacer("/", "", "\\", "", " ", "", "=", "", ":", "")
	return r.Replace(run.LegA) + "_" + r.Replace(run.LegB) + "_" + id
}
