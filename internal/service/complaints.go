package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/restaurant-system/internal/ledger"
	"github.com/mmeshcher/restaurant-system/internal/model"
)

// ComplaintRequest описывает жалобу или благодарность.
type ComplaintRequest struct {
	TargetID    string
	OrderID     string
	Kind        model.FeedbackKind
	Description string
}

// FileComplaint регистрирует обращение для рассмотрения менеджером.
// Если указан заказ, автор должен быть его клиентом или исполнителем.
func (s *Service) FileComplaint(ctx context.Context, sess model.Session, req ComplaintRequest) (*model.Complaint, error) {
	if req.Kind != model.FeedbackComplaint && req.Kind != model.FeedbackCompliment {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, req.Kind)
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if req.TargetID == "" || req.TargetID == sess.AccountID {
		return nil, fmt.Errorf("%w: invalid target", ErrInvalidInput)
	}

	if _, err := s.repo.GetAccount(ctx, req.TargetID); err != nil {
		return nil, err
	}

	if req.OrderID != "" {
		o, err := s.repo.GetOrder(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}
		if !involves(o, sess.AccountID) {
			return nil, ledger.ErrPermissionDenied
		}
	}

	c := &model.Complaint{
		ID:          s.newID(),
		AuthorID:    sess.AccountID,
		TargetID:    req.TargetID,
		OrderID:     req.OrderID,
		Kind:        req.Kind,
		Description: req.Description,
		Status:      model.ComplaintStatusOpen,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateComplaint(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func involves(o *model.Order, accountID string) bool {
	return o.CustomerID == accountID || o.ChefID == accountID || o.DeliveryID == accountID
}

// Complaints возвращает обращения в указанном статусе.
func (s *Service) Complaints(ctx context.Context, actor model.Session, status model.ComplaintStatus) ([]model.Complaint, error) {
	if !actor.IsManager() {
		return nil, ledger.ErrPermissionDenied
	}
	return s.repo.GetComplaintsByStatus(ctx, status)
}

// ResolveComplaint рассматривает обращение. Подтверждённая жалоба на клиента превращается
// в предупреждение, на сотрудника увеличивает счётчик жалоб; подтверждённая благодарность
// увеличивает счётчик благодарностей. Отклонённое обращение ничего не меняет.
func (s *Service) ResolveComplaint(ctx context.Context, actor model.Session, id string, upheld bool) (*model.Complaint, error) {
	if !actor.IsManager() {
		return nil, ledger.ErrPermissionDenied
	}

	var transition ledger.Transition
	c, target, err := s.repo.ResolveComplaint(ctx, id, func(c *model.Complaint, target *model.Account) error {
		transition = ledger.TransitionNone
		c.ResolvedBy = actor.AccountID

		if !upheld {
			c.Status = model.ComplaintStatusDismissed
			return nil
		}
		c.Status = model.ComplaintStatusUpheld

		switch {
		case c.Kind == model.FeedbackCompliment:
			target.ComplimentCount++
		case target.Role == model.RoleCustomer:
			var err error
			transition, err = ledger.IssueWarning(actor, target, "complaint: "+c.Description, s.now())
			return err
		default:
			target.ComplaintCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("complaint resolved",
		zap.String("complaintID", c.ID),
		zap.String("status", string(c.Status)),
		zap.String("targetID", target.ID))
	s.logTransition(target.ID, transition)
	return c, nil
}
