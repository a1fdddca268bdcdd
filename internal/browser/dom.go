// internal/browser/dom.go
package browser

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/agent"
	"github.com/xkilldash9x/webpilot/internal/config"
)

//go:embed scripts/webpilot.js
var webpilotScript string

// element is one indexed interactive element as reported by the page script.
type element struct {
	Index      int               `json:"index"`
	Tag        string            `json:"tag"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
}

// DOM implements agent.DOMProvider on a Session's tab. Element indexes are
// assigned by GetInteractiveElements and stay valid until the next call or
// until the page navigates.
type DOM struct {
	session *Session
	cfg     config.BrowserConfig
	logger  *zap.Logger
}

var _ agent.DOMProvider = (*DOM)(nil)

func NewDOM(session *Session, cfg config.BrowserConfig, logger *zap.Logger) *DOM {
	return &DOM{session: session, cfg: cfg, logger: logger.Named("dom")}
}

// GetInteractiveElements indexes the visible interactive elements and takes a
// screenshot with every element labelled by its index.
func (d *DOM) GetInteractiveElements(ctx context.Context) (*schemas.PageSnapshot, error) {
	var elements []element
	if err := d.eval(ctx, "reset()", nil); err != nil {
		return nil, fmt.Errorf("failed to clear overlays: %w", err)
	}
	if err := d.eval(ctx, "index()", &elements); err != nil {
		return nil, fmt.Errorf("failed to index interactive elements: %w", err)
	}

	var drawn int
	if err := d.eval(ctx, "marks()", &drawn); err != nil {
		d.logger.Warn("Failed to draw element labels", zap.Error(err))
	}
	shot, err := d.session.Screenshot(ctx)
	if err != nil {
		d.logger.Warn("Snapshot taken without screenshot", zap.Error(err))
	}
	if !d.cfg.Highlight {
		if err := d.eval(ctx, "reset()", nil); err != nil {
			d.logger.Debug("Failed to remove element labels", zap.Error(err))
		}
	}

	d.logger.Debug("Indexed interactive elements", zap.Int("count", len(elements)), zap.Int("labelled", drawn))
	return &schemas.PageSnapshot{
		Screenshot:          shot,
		StringifiedDOMState: formatElements(elements),
		ElementCount:        len(elements),
	}, nil
}

// GetIndexSelector scrolls the element into view and returns its centre.
func (d *DOM) GetIndexSelector(ctx context.Context, index int) (*schemas.Coordinate, error) {
	var coord *schemas.Coordinate
	if err := d.eval(ctx, fmt.Sprintf("locate(%d)", index), &coord); err != nil {
		return nil, fmt.Errorf("failed to locate element %d: %w", index, err)
	}
	if coord == nil {
		return nil, fmt.Errorf("element index %d: %w", index, schemas.ErrElementNotFound)
	}
	return coord, nil
}

func (d *DOM) ResetHighlightElements(ctx context.Context) error {
	return d.eval(ctx, "reset()", nil)
}

func (d *DOM) HighlightElementPointer(ctx context.Context, coord schemas.Coordinate) error {
	if !d.cfg.Highlight {
		return nil
	}
	call := "pointer(" + strconv.FormatFloat(coord.X, 'f', 1, 64) + ", " + strconv.FormatFloat(coord.Y, 'f', 1, 64) + ")"
	return d.eval(ctx, call, nil)
}

func (d *DOM) HighlightElementWheel(ctx context.Context, direction schemas.ScrollDirection) error {
	if !d.cfg.Highlight {
		return nil
	}
	return d.eval(ctx, "wheel("+strconv.Quote(string(direction))+")", nil)
}

// HighlightForSoM labels the indexed elements on the page.
func (d *DOM) HighlightForSoM(ctx context.Context) error {
	if !d.cfg.Highlight {
		return nil
	}
	var drawn int
	return d.eval(ctx, "marks()", &drawn)
}

// eval runs a call on the page helper, installing it first if the current
// document does not have it yet.
func (d *DOM) eval(ctx context.Context, call string, res any) error {
	if res == nil {
		var ok bool
		res = &ok
	}
	return d.session.run(ctx, d.cfg.ActionTimeout, chromedp.Evaluate(helperCall(call), res))
}

func helperCall(call string) string {
	return "(function () { if (!window.__webpilot) {\n" + webpilotScript + "\n} return window.__webpilot." + call + "; })()"
}

// formatElements renders the element list for the model, one element per
// line: [index]<tag attr="value">text</tag>
func formatElements(elements []element) string {
	if len(elements) == 0 {
		return ""
	}
	var b strings.Builder
	for i, el := range elements {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d]<%s", el.Index, el.Tag)

		names := make([]string, 0, len(el.Attributes))
		for name := range el.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, " %s=%q", name, el.Attributes[name])
		}

		if el.Text == "" {
			b.WriteString(">")
			continue
		}
		fmt.Fprintf(&b, ">%s</%s>", el.Text, el.Tag)
	}
	return b.String()
}
