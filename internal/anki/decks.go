package anki

import (
	"fmt"
	"strings"
)

// Deck is a deck entry in col.decks.
type Deck struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Desc      string `json:"desc"`
	Conf      int64  `json:"conf"`
	Dyn       int    `json:"dyn"`
	Collapsed bool   `json:"collapsed"`
	ExtendNew int    `json:"extendNew"`
	ExtendRev int    `json:"extendRev"`
	Mod       int64  `json:"mod"`
	USN       int    `json:"usn"`
	NewToday  [2]int `json:"newToday"`
	RevToday  [2]int `json:"revToday"`
	LrnToday  [2]int `json:"lrnToday"`
	TimeToday [2]int `json:"timeToday"`
}

// NewCardOptions are the new-card settings of an options group.
type NewCardOptions struct {
	Delays        []float64 `json:"delays"`
	Ints          []int     `json:"ints"`
	InitialFactor int       `json:"initialFactor"`
	Order         int       `json:"order"`
	PerDay        int       `json:"perDay"`
	Bury          bool      `json:"bury"`
	Separate      bool      `json:"separate"`
}

// ReviewOptions are the review settings of an options group.
type ReviewOptions struct {
	PerDay   int     `json:"perDay"`
	Ease4    float64 `json:"ease4"`
	Fuzz     float64 `json:"fuzz"`
	MaxIvl   int     `json:"maxIvl"`
	Bury     bool    `json:"bury"`
	MinSpace int     `json:"minSpace"`
}

// LapseOptions are the lapse settings of an options group.
type LapseOptions struct {
	Delays      []float64 `json:"delays"`
	Mult        float64   `json:"mult"`
	MinInt      int       `json:"minInt"`
	LeechFails  int       `json:"leechFails"`
	LeechAction int       `json:"leechAction"`
}

// DeckConfig is a deck options group in col.dconf.
type DeckConfig struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Mod      int64          `json:"mod"`
	USN      int            `json:"usn"`
	MaxTaken int            `json:"maxTaken"`
	Autoplay bool           `json:"autoplay"`
	Timer    int            `json:"timer"`
	Replayq  bool           `json:"replayq"`
	Dyn      bool           `json:"dyn"`
	New      NewCardOptions `json:"new"`
	Rev      ReviewOptions  `json:"rev"`
	Lapse    LapseOptions   `json:"lapse"`
}

// Decks holds the decks and deck options groups of a collection.
type Decks struct {
	col     *Collection
	decks   map[int64]*Deck
	configs map[int64]*DeckConfig
}

func newDecks(col *Collection) *Decks {
	d := &Decks{
		col:     col,
		decks:   make(map[int64]*Deck),
		configs: make(map[int64]*DeckConfig),
	}

	conf := defaultDeckConfig("Default")
	conf.ID = 1
	d.configs[conf.ID] = conf

	d.decks[DefaultDeckID] = &Deck{
		ID:        DefaultDeckID,
		Name:      "Default",
		Conf:      conf.ID,
		ExtendNew: 10,
		ExtendRev: 50,
		Mod:       col.modTime(),
	}
	return d
}

// Get returns the deck with the given id.
func (d *Decks) Get(id int64) (*Deck, bool) {
	deck, ok := d.decks[id]
	return deck, ok
}

// Rename changes the name of a deck.
func (d *Decks) Rename(id int64, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("deck name must not be empty")
	}
	deck, ok := d.decks[id]
	if !ok {
		return fmt.Errorf("deck %d not found", id)
	}
	deck.Name = name
	deck.Mod = d.col.modTime()
	return nil
}

// AddConfig creates a deck options group with default settings.
func (d *Decks) AddConfig(name string) (*DeckConfig, error) {
	if err := d.col.checkOpen(); err != nil {
		return nil, err
	}
	for _, conf := range d.configs {
		if conf.Name == name {
			return nil, fmt.Errorf("deck options %q already exist", name)
		}
	}

	conf := defaultDeckConfig(name)
	conf.ID = d.col.newID()
	conf.Mod = d.col.modTime()
	d.configs[conf.ID] = conf
	return conf, nil
}

// Configs returns the number of deck options groups.
func (d *Decks) Configs() int {
	return len(d.configs)
}

func (d *Decks) exportDecks() map[string]*Deck {
	out := make(map[string]*Deck, len(d.decks))
	for id, deck := range d.decks {
		out[fmt.Sprint(id)] = deck
	}
	return out
}

func (d *Decks) exportConfigs() map[string]*DeckConfig {
	out := make(map[string]*DeckConfig, len(d.configs))
	for id, conf := range d.configs {
		out[fmt.Sprint(id)] = conf
	}
	return out
}

func defaultDeckConfig(name string) *DeckConfig {
	return &DeckConfig{
		Name:     name,
		MaxTaken: 60,
		Autoplay: true,
		Replayq:  true,
		New: NewCardOptions{
			Delays:        []float64{1, 10},
			Ints:          []int{1, 4, 7},
			InitialFactor: 2500,
			Order:         1,
			PerDay:        20,
			Bury:          true,
			Separate:      true,
		},
		Rev: ReviewOptions{
			PerDay:   200,
			Ease4:    1.3,
			Fuzz:     0.05,
			MaxIvl:   36500,
			Bury:     true,
			MinSpace: 1,
		},
		Lapse: LapseOptions{
			Delays:      []float64{10},
			Mult:        0,
			MinInt:      1,
			LeechFails:  8,
			LeechAction: 0,
		},
	}
}
