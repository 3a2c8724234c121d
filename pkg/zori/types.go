package zori

import (
	"github.com/AtRiskMedia/zori-go/internal/domain/commands"
	"github.com/AtRiskMedia/zori-go/internal/domain/entities/consent"
	"github.com/AtRiskMedia/zori-go/internal/domain/events"
	"github.com/AtRiskMedia/zori-go/internal/domain/page"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/clock"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/fingerprint"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/persistence/store"
	"github.com/AtRiskMedia/zori-go/internal/infrastructure/transport"
)

// Collaborator types a host implements or constructs.
type (
	Page         = page.Page
	PageProvider = page.Provider
	StaticPage   = page.Static
	Backend      = store.Backend
	Transport    = transport.Transport
	Clock        = clock.Clock
	Collector    = fingerprint.Collector
	Environment  = fingerprint.Environment
)

// Call argument and result types.
type (
	ClickData     = events.ClickData
	Preferences   = consent.Preferences
	ConsentRecord = consent.Record
	Stats         = performance.Snapshot
)

// Command variants accepted by Client.Do.
type (
	Command         = commands.Command
	TrackCommand    = commands.Track
	IdentifyCommand = commands.Identify
	VisitorIDQuery  = commands.GetVisitorID
	ConsentCommand  = commands.SetConsent
	OptOutCommand   = commands.OptOut
	ConsentQuery    = commands.HasConsent
	SessionIDQuery  = commands.GetSessionID
	PushCommand     = commands.Push
)

// NewStaticPage returns a PageProvider positioned at p.
func NewStaticPage(p Page) *StaticPage {
	return page.NewStatic(p)
}

// ParsePage builds a Page from a raw URL.
func ParsePage(rawURL string) Page {
	return page.MustParse(rawURL)
}

// NewMemoryStore returns a process-local Backend. A nil clock uses the system clock.
func NewMemoryStore(c Clock) *store.MemoryBackend {
	return store.NewMemoryBackend(c)
}
