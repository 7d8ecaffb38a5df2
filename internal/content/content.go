// Package content loads quest content, players and teams from YAML or JSON
// documents, validates them and writes them to a store.
package content

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/playperu/questhunt/internal/geo"
	"github.com/playperu/questhunt/internal/puzzle"
	"github.com/playperu/questhunt/internal/quest"
)

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("questhunt.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

type Document struct {
	Quests  []QuestDoc  `json:"quests,omitempty"`
	Players []PlayerDoc `json:"players,omitempty"`
	Teams   []TeamDoc   `json:"teams,omitempty"`
}

type QuestDoc struct {
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Start        geo.Point       `json:"start"`
	Difficulty   int             `json:"difficulty"`
	RewardPoints int             `json:"rewardPoints"`
	Type         quest.QuestType `json:"type"`
	Clues        []ClueDoc       `json:"clues"`
}

type ClueDoc struct {
	Sequence   int            `json:"sequence"`
	Text       string         `json:"text,omitempty"`
	Target     geo.Point      `json:"target"`
	Type       quest.ClueType `json:"type"`
	PuzzleData string         `json:"puzzleData,omitempty"`
	Hint       string         `json:"hint,omitempty"`
}

type PlayerDoc struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type TeamDoc struct {
	Name    string   `json:"name"`
	Leader  string   `json:"leader"`
	Members []string `json:"members,omitempty"`
}

// DecodeJSON reads and validates a JSON document.
func DecodeJSON(r io.Reader) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}
	return decode(raw)
}

// DecodeYAML validates a YAML document. Keys are the same as in JSON.
func DecodeYAML(raw []byte) (Document, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return Document{}, fmt.Errorf("%w: yaml: %v", quest.ErrInvalidContent, err)
	}
	asJSON, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("%w: yaml: %v", quest.ErrInvalidContent, err)
	}
	return decode(asJSON)
}

// LoadFile decodes path as YAML or JSON by its extension.
func LoadFile(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return decode(raw)
	case ".yaml", ".yml":
		return DecodeYAML(raw)
	}
	return Document{}, fmt.Errorf("content file %s: unsupported extension", path)
}

func decode(raw []byte) (Document, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Document{}, fmt.Errorf("%w: %v", quest.ErrInvalidContent, err)
	}
	s, err := compiledSchema()
	if err != nil {
		return Document{}, fmt.Errorf("compiling content schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return Document{}, fmt.Errorf("%w: %v", quest.ErrInvalidContent, err)
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", quest.ErrInvalidContent, err)
	}
	if err := doc.Check(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Check runs the rules a schema cannot express: clue sequence numbers are
// 1..n without gaps, and puzzle clues carry parseable puzzle data.
func (d Document) Check() error {
	var errs []error
	for i, q := range d.Quests {
		if err := checkQuest(q); err != nil {
			errs = append(errs, fmt.Errorf("quest %d (%q): %w", i, q.Title, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", quest.ErrInvalidContent, err)
	}
	return nil
}

func checkQuest(q QuestDoc) error {
	if !q.Type.Valid() {
		return fmt.Errorf("unknown quest type %q", q.Type)
	}
	seqs := make([]int, 0, len(q.Clues))
	var errs []error
	for _, c := range q.Clues {
		seqs = append(seqs, c.Sequence)
		switch {
		case !c.Type.Valid():
			errs = append(errs, fmt.Errorf("clue %d: unknown type %q", c.Sequence, c.Type))
		case c.Type == quest.ClueTypeLocation && c.PuzzleData != "":
			errs = append(errs, fmt.Errorf("clue %d: location clue has puzzle data", c.Sequence))
		case c.Type.IsPuzzle():
			if _, err := puzzle.Parse(c.Type, c.PuzzleData); err != nil {
				errs = append(errs, fmt.Errorf("clue %d: %w", c.Sequence, err))
			}
		}
	}
	sort.Ints(seqs)
	for i, s := range seqs {
		if s != i+1 {
			errs = append(errs, fmt.Errorf("clue sequence numbers must run 1..%d, got %v", len(seqs), seqs))
			break
		}
	}
	return errors.Join(errs...)
}

// Sink receives imported content.
type Sink interface {
	CreateQuest(ctx context.Context, q quest.Quest, clues []quest.Clue) (quest.Quest, error)
	CreatePlayer(ctx context.Context, playerID, username string) (quest.PlayerProfile, error)
	CreateTeam(ctx context.Context, name, leaderID string) (quest.Team, error)
	AddTeamMember(ctx context.Context, teamID, playerID string) error
	CountQuests(ctx context.Context) (int, error)
}

type Result struct {
	Quests  []quest.Quest
	Players int
	Teams   []quest.Team
}

// Import writes players first, then teams, then quests. Players that
// already exist are kept as they are.
func Import(ctx context.Context, sink Sink, doc Document) (Result, error) {
	var res Result

	for _, p := range doc.Players {
		_, err := sink.CreatePlayer(ctx, p.ID, p.Username)
		if errors.Is(err, quest.ErrProfileExists) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("creating player %s: %w", p.ID, err)
		}
		res.Players++
	}

	for _, t := range doc.Teams {
		team, err := sink.CreateTeam(ctx, t.Name, t.Leader)
		if err != nil {
			return res, fmt.Errorf("creating team %q: %w", t.Name, err)
		}
		for _, m := range t.Members {
			if m == t.Leader {
				continue
			}
			if err := sink.AddTeamMember(ctx, team.ID, m); err != nil {
				return res, fmt.Errorf("adding %s to team %q: %w", m, t.Name, err)
			}
			team.MemberIDs = append(team.MemberIDs, m)
		}
		res.Teams = append(res.Teams, team)
	}

	for _, qd := range doc.Quests {
		q, clues := qd.toQuest()
		created, err := sink.CreateQuest(ctx, q, clues)
		if err != nil {
			return res, fmt.Errorf("creating quest %q: %w", qd.Title, err)
		}
		res.Quests = append(res.Quests, created)
	}
	return res, nil
}

func (qd QuestDoc) toQuest() (quest.Quest, []quest.Clue) {
	q := quest.Quest{
		Title:        qd.Title,
		Description:  qd.Description,
		Start:        qd.Start,
		Difficulty:   qd.Difficulty,
		RewardPoints: qd.RewardPoints,
		Type:         qd.Type,
	}
	clues := make([]quest.Clue, len(qd.Clues))
	for i, c := range qd.Clues {
		clues[i] = quest.Clue{
			SequenceNumber: c.Sequence,
			Text:           c.Text,
			Target:         c.Target,
			Type:           c.Type,
			PuzzleData:     c.PuzzleData,
			Hint:           c.Hint,
		}
	}
	sort.Slice(clues, func(i, j int) bool { return clues[i].SequenceNumber < clues[j].SequenceNumber })
	return q, clues
}

// SeedFile imports path into an empty store. A store that already has
// quests is left alone.
func SeedFile(ctx context.Context, logger *slog.Logger, sink Sink, path string) error {
	n, err := sink.CountQuests(ctx)
	if err != nil {
		return fmt.Errorf("counting quests: %w", err)
	}
	if n > 0 {
		logger.Info("store already has content, skipping seed", "quests", n, "file", path)
		return nil
	}

	doc, err := LoadFile(path)
	if err != nil {
		return fmt.Errorf("loading seed %s: %w", path, err)
	}
	res, err := Import(ctx, sink, doc)
	if err != nil {
		return fmt.Errorf("seeding from %s: %w", path, err)
	}
	logger.Info("seeded content", "file", path,
		"quests", len(res.Quests), "players", res.Players, "teams", len(res.Teams))
	return nil
}
