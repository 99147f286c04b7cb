package render

import (
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/legiswatch/notify/pkg/prefs"
	"github.com/legiswatch/notify/pkg/sender"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Item is the render-facing view of one event.
type Item struct {
	Kind      prefs.Kind
	Context   map[string]any
	CreatedAt time.Time
}

// Renderer produces message content from events.
type Renderer struct {
	instant *template.Template
	digestT *template.Template

	// calendarRowCap bounds how many calendar rows one digest shows;
	// the remainder is summarized as a truncation note.
	calendarRowCap int
}

// NewRenderer parses the embedded templates.
func NewRenderer(calendarRowCap int) (*Renderer, error) {
	instant, err := template.ParseFS(templateFS, "templates/instant.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("render: parse instant template: %w", err)
	}
	digestT, err := template.ParseFS(templateFS, "templates/digest.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("render: parse digest template: %w", err)
	}
	if calendarRowCap <= 0 {
		calendarRowCap = 10
	}
	return &Renderer{instant: instant, digestT: digestT, calendarRowCap: calendarRowCap}, nil
}

type itemView struct {
	Headline string
	Summary  string
	BillID   string
	Chamber  string
}

// Instant renders a single-event message for one recipient.
func (r *Renderer) Instant(item Item, to string) (sender.Message, error) {
	view := viewOf(item)

	var body strings.Builder
	if err := r.instant.Execute(&body, view); err != nil {
		return sender.Message{}, fmt.Errorf("render: instant body: %w", err)
	}

	return sender.Message{
		To:       to,
		Subject:  view.Headline,
		BodyHTML: body.String(),
		Preview:  view.Summary,
		Tag:      string(item.Kind),
	}, nil
}

type digestView struct {
	Title          string
	Items          []itemView
	Truncated      bool
	TruncatedCount int
}

// Digest renders one aggregated message from many events, newest first.
func (r *Renderer) Digest(items []Item, to string, cadence prefs.Cadence) (sender.Message, error) {
	if len(items) == 0 {
		return sender.Message{}, fmt.Errorf("render: digest requires at least one item")
	}

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	shown := sorted
	truncated := 0
	if len(shown) > r.calendarRowCap {
		truncated = len(shown) - r.calendarRowCap
		shown = shown[:r.calendarRowCap]
	}

	views := make([]itemView, 0, len(shown))
	for _, it := range shown {
		views = append(views, viewOf(it))
	}

	title := "Your daily legislative digest"
	if cadence == prefs.CadenceWeekly {
		title = "Your weekly legislative digest"
	}

	var body strings.Builder
	err := r.digestT.Execute(&body, digestView{
		Title:          title,
		Items:          views,
		Truncated:      truncated > 0,
		TruncatedCount: truncated,
	})
	if err != nil {
		return sender.Message{}, fmt.Errorf("render: digest body: %w", err)
	}

	subject := fmt.Sprintf("%s (%d updates)", title, len(items))
	return sender.Message{
		To:       to,
		Subject:  subject,
		BodyHTML: body.String(),
		Preview:  views[0].Headline,
		Tag:      "digest",
	}, nil
}

// viewOf maps an event's opaque context payload onto the template view.
// Unknown kinds still render: the kind itself becomes the headline.
func viewOf(item Item) itemView {
	v := itemView{
		BillID:  ctxString(item.Context, "bill_id"),
		Chamber: ctxString(item.Context, "chamber"),
		Summary: ctxString(item.Context, "summary"),
	}

	switch item.Kind {
	case prefs.KindBillIntroduced:
		v.Headline = fmt.Sprintf("Bill %s was introduced", v.BillID)
	case prefs.KindBillStatusChanged:
		v.Headline = fmt.Sprintf("Bill %s changed status", v.BillID)
	case prefs.KindVoteRecorded:
		v.Headline = fmt.Sprintf("A vote was recorded on bill %s", v.BillID)
	case prefs.KindHearingScheduled:
		v.Headline = "A hearing was scheduled"
	case prefs.KindHearingRescheduled:
		v.Headline = "A hearing was rescheduled"
	case prefs.KindHearingCanceled:
		v.Headline = "A hearing was canceled"
	case prefs.KindFloorCalendar:
		v.Headline = fmt.Sprintf("New floor calendar for the %s", v.Chamber)
	case prefs.KindCommitteeCalendar:
		v.Headline = fmt.Sprintf("New committee calendar for the %s", v.Chamber)
	default:
		v.Headline = strings.ReplaceAll(string(item.Kind), "_", " ")
	}

	if v.Summary == "" {
		v.Summary = v.Headline
	}
	return v
}

func ctxString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
