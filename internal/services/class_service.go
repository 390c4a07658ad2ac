package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"kaskelas/internal/core"
	"kaskelas/internal/ports"
)

type ClassService struct {
	writeHooks
	repo ports.Repository
}

func NewClassService(repo ports.Repository) *ClassService {
	return &ClassService{repo: repo}
}

func (s *ClassService) List(ctx context.Context) ([]core.SchoolClass, error) {
	classes, err := s.repo.ListClasses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

func (s *ClassService) Get(ctx context.Context, id string) (core.SchoolClass, error) {
	c, err := s.repo.GetClass(ctx, id)
	if err != nil {
		return core.SchoolClass{}, fmt.Errorf("get class: %w", err)
	}
	return c, nil
}

// Create stores a new class with the default funds and split rule.
func (s *ClassService) Create(ctx context.Context, name string) (core.SchoolClass, error) {
	c := core.NewDefaultClass(uuid.NewString(), strings.TrimSpace(name))
	if err := s.Save(ctx, c); err != nil {
		return core.SchoolClass{}, err
	}
	return c, nil
}

// Save validates and upserts c.
func (s *ClassService) Save(ctx context.Context, c core.SchoolClass) error {
	if c.Students == nil {
		c.Students = []string{}
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.repo.SaveClass(ctx, c); err != nil {
		return fmt.Errorf("save class: %w", err)
	}
	s.afterWrite(ctx, c.ID)
	return nil
}

// EnsureDefaultClass creates the class id with defaults unless it exists.
func (s *ClassService) EnsureDefaultClass(ctx context.Context, id, name string) error {
	_, err := s.repo.GetClass(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("get class: %w", err)
	}
	slog.InfoContext(ctx, "Creating default class", "class_id", id, "name", name)
	return s.Save(ctx, core.NewDefaultClass(id, name))
}

func (s *ClassService) InitialBalances(ctx context.Context, classID string) (core.InitialBalances, error) {
	if _, err := s.repo.GetClass(ctx, classID); err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	b, err := s.repo.GetInitialBalances(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get initial balances: %w", err)
	}
	if b == nil {
		b = core.InitialBalances{}
	}
	return b, nil
}

// SetInitialBalances replaces the opening balances. Every key must name a
// fund of the class.
func (s *ClassService) SetInitialBalances(ctx context.Context, classID string, b core.InitialBalances) error {
	c, err := s.repo.GetClass(ctx, classID)
	if err != nil {
		return fmt.Errorf("get class: %w", err)
	}
	for id := range b {
		if _, ok := c.FundByID(id); !ok {
			return fmt.Errorf("%w: %q", core.ErrUnknownFund, id)
		}
	}
	if err := s.repo.SetInitialBalances(ctx, classID, b); err != nil {
		return fmt.Errorf("set initial balances: %w", err)
	}
	s.afterWrite(ctx, classID)
	return nil
}
