package store

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// ConfigVersion is the current ScheduleConfig layout. Version 0 documents
// (written before the field existed) decode unchanged; Normalize upgrades them.
const ConfigVersion = 2

// DefaultCaption is used when caption generation fails in single mode.
const DefaultCaption = "If you are feeling lazy use claude to post your work on insta w/o lifting a finger :)"

// Cadence selects how the recurring job is scheduled.
type Cadence string

const (
	CadenceDaily      Cadence = "daily"
	CadenceEveryNDays Cadence = "every_n_days"
	CadenceWeekdays   Cadence = "weekdays"
)

// Mode selects how many photos a tick picks.
type Mode string

const (
	// ModeMulti picks up to ten same-location photos (carousel).
	ModeMulti Mode = "multi"
	// ModeSingle picks one photo and falls back to DefaultCaption when
	// caption generation fails.
	ModeSingle Mode = "single"
)

// ScheduleConfig is the user-editable schedule. It is replaced wholesale on
// every update and never deleted.
//
// Weekdays use Monday=0 ... Sunday=6.
type ScheduleConfig struct {
	Version         int     `json:"version"`
	Enabled         bool    `json:"enabled"`
	Hour            int     `json:"hour"`
	Minute          int     `json:"minute"`
	Cadence         Cadence `json:"cadence"`
	EveryNDays      int     `json:"every_n_days"`
	Weekdays        []int   `json:"weekdays"`
	FolderID        string  `json:"folder_id"`
	Tone            string  `json:"tone"`
	RequireApproval bool    `json:"require_approval"`
	DefaultCaption  string  `json:"default_caption"`
	Mode            Mode    `json:"mode"`
}

// DefaultScheduleConfig returns the config used before the first save.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Version:         ConfigVersion,
		Enabled:         false,
		Hour:            8,
		Minute:          0,
		Cadence:         CadenceDaily,
		EveryNDays:      1,
		Weekdays:        []int{0, 1, 2, 3, 4},
		Tone:            "engaging",
		RequireApproval: true,
		DefaultCaption:  DefaultCaption,
		Mode:            ModeMulti,
	}
}

// Normalize clamps out-of-range fields back to defaults and upgrades the
// version. An unrecognised cadence is treated as daily; this matches how
// the schedule has always been interpreted and is logged so it is visible.
func (c ScheduleConfig) Normalize() ScheduleConfig {
	def := DefaultScheduleConfig()

	switch c.Cadence {
	case CadenceDaily, CadenceEveryNDays, CadenceWeekdays:
	default:
		if c.Cadence != "" {
			log.Warn().Str("cadence", string(c.Cadence)).Msg("Unknown cadence, scheduling daily")
		}
		c.Cadence = CadenceDaily
	}
	if c.Hour < 0 || c.Hour > 23 {
		c.Hour = def.Hour
	}
	if c.Minute < 0 || c.Minute > 59 {
		c.Minute = def.Minute
	}
	if c.EveryNDays < 1 {
		c.EveryNDays = 1
	}

	days := make([]int, 0, len(c.Weekdays))
	for _, d := range c.Weekdays {
		if d >= 0 && d <= 6 && !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	slices.Sort(days)
	if len(days) == 0 {
		days = def.Weekdays
	}
	c.Weekdays = days

	if c.Tone == "" {
		c.Tone = def.Tone
	}
	if c.Mode != ModeSingle {
		c.Mode = ModeMulti
	}
	c.Version = ConfigVersion
	return c
}

// PostedIDs is the idempotency ledger: every photo id already published or
// already queued for approval. It is stored as a sorted JSON array.
type PostedIDs map[string]struct{}

// Has reports membership.
func (p PostedIDs) Has(id string) bool {
	_, ok := p[id]
	return ok
}

// Add inserts ids.
func (p PostedIDs) Add(ids ...string) {
	for _, id := range ids {
		p[id] = struct{}{}
	}
}

// Sorted returns the ids in ascending order.
func (p PostedIDs) Sorted() []string {
	out := make([]string, 0, len(p))
	for id := range p {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (p PostedIDs) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Sorted())
}

func (p *PostedIDs) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	set := make(PostedIDs, len(ids))
	set.Add(ids...)
	*p = set
	return nil
}

// PendingPost is a composed post waiting for approval.
type PendingPost struct {
	ID         string    `json:"id"`
	FileIDs    []string  `json:"file_ids"`
	FileNames  []string  `json:"file_names"`
	Caption    string    `json:"caption"`
	LocationID string    `json:"location_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// UnmarshalJSON also accepts the older single-photo layout that stored
// file_id and file_name instead of the lists.
func (p *PendingPost) UnmarshalJSON(data []byte) error {
	type plain PendingPost
	var raw struct {
		plain
		FileID   string `json:"file_id"`
		FileName string `json:"file_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PendingPost(raw.plain)
	if len(p.FileIDs) == 0 && raw.FileID != "" {
		p.FileIDs = []string{raw.FileID}
	}
	if len(p.FileNames) == 0 && len(p.FileIDs) > 0 {
		name := raw.FileName
		if name == "" {
			name = p.FileIDs[0]
		}
		p.FileNames = []string{name}
	}
	return nil
}

// PostStatus is the outcome recorded in history.
type PostStatus string

const (
	StatusSuccess PostStatus = "success"
	StatusFailed  PostStatus = "failed"
)

// PostSource says what triggered a publish attempt.
type PostSource string

const (
	SourceManual    PostSource = "manual"
	SourceScheduled PostSource = "scheduled"
	SourceApproved  PostSource = "approved"
)

// HistoryEntry records one publish attempt. Entries are never modified.
type HistoryEntry struct {
	ID        string     `json:"id"`
	FileIDs   []string   `json:"file_ids"`
	FileNames []string   `json:"file_names"`
	Caption   string     `json:"caption"`
	Status    PostStatus `json:"status"`
	Source    PostSource `json:"source"`
	Error     string     `json:"error"`
	MediaID   string     `json:"media_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// LocationCache maps a photo id to its resolved place name. A nil value is
// a resolved miss (no GPS, geocoder found nothing, or extraction failed) and
// must not be retried.
type LocationCache map[string]*string

// TokenState is the persisted publish-token. ExpiresAt is unix seconds;
// zero means the expiry is unknown.
type TokenState struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}
