package accounts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validate: validator.New(), logger: logger}
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns accounts matching filter ordered by code, each with its parent and direct children.
func (s *Service) List(ctx context.Context, filter Filter) ([]Node, error) {
	matched, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	all := matched
	if filter.Level != nil || filter.Category != nil || filter.Status != nil {
		if all, err = s.repo.List(ctx, Filter{}); err != nil {
			return nil, err
		}
	}
	byID := make(map[int64]Account, len(all))
	children := make(map[int64][]Summary)
	for _, acc := range all {
		byID[acc.ID] = acc
		if acc.ParentID != nil {
			children[*acc.ParentID] = append(children[*acc.ParentID], acc.Summary())
		}
	}
	nodes := make([]Node, 0, len(matched))
	for _, acc := range matched {
		node := Node{Account: acc, Children: children[acc.ID]}
		if node.Children == nil {
			node.Children = []Summary{}
		}
		if acc.ParentID != nil {
			if parent, ok := byID[*acc.ParentID]; ok {
				summary := parent.Summary()
				node.Parent = &summary
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s *Service) Create(ctx context.Context, input CreateAccountInput) (Account, error) {
	input.normalize()
	if err := s.validate.Struct(input); err != nil {
		return Account{}, validationError(err)
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetByCode(ctx, input.Code); err == nil {
			return fmt.Errorf("%w: %s", shared.ErrDuplicateCode, input.Code)
		} else if !isNotFound(err) {
			return err
		}
		if input.ParentID != nil {
			parent, err := tx.Get(ctx, *input.ParentID)
			if err != nil {
				if isNotFound(err) {
					return fmt.Errorf("%w: parent %d does not exist", shared.ErrInvalidParent, *input.ParentID)
				}
				return err
			}
			if parent.Level >= input.Level {
				return fmt.Errorf("%w: parent level %d must be below %d", shared.ErrInvalidParent, parent.Level, input.Level)
			}
		}
		acc, err := tx.Insert(ctx, Account{
			Code:         input.Code,
			Name:         input.Name,
			Description:  input.Description,
			Level:        input.Level,
			Nature:       input.Nature,
			Category:     input.Category,
			IsPostable:   input.IsPostable,
			Status:       input.Status,
			ExternalCode: input.ExternalCode,
			ParentID:     input.ParentID,
		})
		if err != nil {
			return err
		}
		created = acc
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.logger.Info("account created", slog.String("code", created.Code), slog.Int64("account_id", created.ID))
	return created, nil
}

// Update patches an account. The code may only change while no journal line references it,
// and a parent re-assignment must keep levels strictly increasing and never form a cycle.
func (s *Service) Update(ctx context.Context, id int64, input UpdateAccountInput) (Account, error) {
	input.normalize()
	if err := s.validate.Struct(input); err != nil {
		return Account{}, validationError(err)
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next := current
		if input.Code != nil && *input.Code != current.Code {
			referenced, err := tx.IsReferenced(ctx, id)
			if err != nil {
				return err
			}
			if referenced {
				return fmt.Errorf("%w: %s", shared.ErrAccountReferenced, current.Code)
			}
			if _, err := tx.GetByCode(ctx, *input.Code); err == nil {
				return fmt.Errorf("%w: %s", shared.ErrDuplicateCode, *input.Code)
			} else if !isNotFound(err) {
				return err
			}
			next.Code = *input.Code
		}
		if input.ParentID != nil {
			if err := s.checkParent(ctx, tx, current, *input.ParentID); err != nil {
				return err
			}
			next.ParentID = input.ParentID
		}
		if input.Name != nil {
			next.Name = *input.Name
		}
		if input.Description != nil {
			next.Description = *input.Description
		}
		if input.IsPostable != nil {
			next.IsPostable = *input.IsPostable
		}
		if input.Status != nil {
			next.Status = *input.Status
		}
		if input.ExternalCode != nil {
			next.ExternalCode = *input.ExternalCode
		}
		if updated, err = tx.Update(ctx, next); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return updated, nil
}

func (s *Service) checkParent(ctx context.Context, tx TxRepository, child Account, parentID int64) error {
	if parentID == child.ID {
		return fmt.Errorf("%w: account cannot be its own parent", shared.ErrInvalidParent)
	}
	parent, err := tx.Get(ctx, parentID)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: parent %d does not exist", shared.ErrInvalidParent, parentID)
		}
		return err
	}
	if parent.Level >= child.Level {
		return fmt.Errorf("%w: parent level %d must be below %d", shared.ErrInvalidParent, parent.Level, child.Level)
	}
	// Walk the new parent's ancestry; meeting the child means the assignment closes a loop.
	seen := map[int64]bool{parent.ID: true}
	cursor := parent
	for cursor.ParentID != nil {
		if *cursor.ParentID == child.ID {
			return fmt.Errorf("%w: assignment would create a cycle", shared.ErrInvalidParent)
		}
		if seen[*cursor.ParentID] {
			break
		}
		seen[*cursor.ParentID] = true
		if cursor, err = tx.Get(ctx, *cursor.ParentID); err != nil {
			return err
		}
	}
	return nil
}

// SeedBaseChart inserts the base chart when no account exists yet. The emptiness
// check and the inserts share one transaction.
func (s *Service) SeedBaseChart(ctx context.Context) (int, error) {
	inserted := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockChart(ctx); err != nil {
			return err
		}
		count, err := tx.Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %d accounts present", shared.ErrAlreadyInitialized, count)
		}
		parents := make(map[string]int64)
		for _, level := range []int{1, 2} {
			for _, seed := range baseChart {
				if seedLevel(seed.Code) != level {
					continue
				}
				acc := Account{
					Code:         seed.Code,
					Name:         seed.Name,
					Level:        level,
					Nature:       seed.Nature,
					Category:     seed.Category,
					IsPostable:   level > 1,
					Status:       StatusActive,
					ExternalCode: seed.ExternalCode,
				}
				if level > 1 {
					parentID, ok := parents[seed.Code[:2]]
					if !ok {
						return fmt.Errorf("%w: no level-1 parent for %s", shared.ErrInvalidParent, seed.Code)
					}
					acc.ParentID = &parentID
				}
				created, err := tx.Insert(ctx, acc)
				if err != nil {
					return err
				}
				if level == 1 {
					parents[created.Code] = created.ID
				}
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("base chart seeded", slog.Int("accounts", inserted))
	return inserted, nil
}
