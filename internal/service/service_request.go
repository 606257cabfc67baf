package service

import (
	"context"
	"strings"

	"workshop-service/internal/apperr"
	"workshop-service/internal/models"
	"workshop-service/internal/store"
	"workshop-service/internal/util"

	"go.uber.org/zap"
)

// ServiceRequestInput files a customer request.
type ServiceRequestInput struct {
	Customer           models.Customer `json:"customer"`
	Vehicle            models.Vehicle  `json:"vehicle"`
	ProblemDescription string          `json:"problem_description"`
	Priority           models.Priority `json:"priority"`
}

// CreateServiceRequest records an incoming request under a fresh SR number.
func (s *QuotationService) CreateServiceRequest(ctx context.Context, actor models.Actor, in ServiceRequestInput) (*models.ServiceRequest, error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.CreateServiceRequest", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleRequestor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Customer.Name) == "" {
		err = apperr.Validation("customer name is required")
		return nil, err
	}
	if strings.TrimSpace(in.ProblemDescription) == "" {
		err = apperr.Validation("problem description is required")
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		err = apperr.Validation("unknown priority %q", in.Priority)
		return nil, err
	}

	req := &models.ServiceRequest{
		OrganizationID:     actor.OrganizationID,
		Customer:           in.Customer,
		Vehicle:            in.Vehicle,
		ProblemDescription: in.ProblemDescription,
		Priority:           in.Priority,
		Status:             models.RequestOpen,
		CreatedBy:          actor.UserID,
	}
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		number, err := s.deps.Sequences.issue(ctx, tx, actor.OrganizationID, s.deps.now().Year(), models.SequenceServiceRequest)
		if err != nil {
			return err
		}
		req.RequestNumber = number
		if err := tx.InsertServiceRequest(ctx, req); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, history(actor, models.EntityServiceRequest, req.ID, "create", number)); err != nil {
			return err
		}
		return tx.InsertActivity(ctx, activity(actor, "service_request_created", "filed service request "+number))
	})
	if err != nil {
		err = apperr.Wrap("create service request", err)
		return nil, err
	}

	s.logger.Info("Service request created", append(util.ActorFields(actor),
		zap.Int64("request_id", req.ID),
		zap.String("number", req.RequestNumber))...)
	return req, nil
}

// GetServiceRequest returns one request of the actor's organization.
func (s *QuotationService) GetServiceRequest(ctx context.Context, actor models.Actor, id int64) (*models.ServiceRequest, error) {
	req, err := s.deps.Repo.GetServiceRequest(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, apperr.Wrap("get service request", err)
	}
	return req, nil
}

// ConvertToQuotation prices an open request. Customer, vehicle and problem
// fields missing from in are taken from the request.
func (s *QuotationService) ConvertToQuotation(ctx context.Context, actor models.Actor, requestID int64, in QuotationInput) (*models.Quotation, error) {
	ctx, span := util.StartSpan(ctx, "QuotationService.ConvertToQuotation", actor)
	var err error
	defer func() { util.EndSpan(span, err) }()

	if err = authorize(actor, models.RoleTechnician); err != nil {
		return nil, err
	}

	var q *models.Quotation
	err = s.deps.Repo.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		req, err := tx.LockServiceRequest(ctx, actor.OrganizationID, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestOpen {
			return apperr.Precondition(apperr.ErrAlreadyProcessed,
				"service request already processed: status is %s", req.Status)
		}

		if strings.TrimSpace(in.Customer.Name) == "" {
			in.Customer = req.Customer
		}
		if in.Vehicle == (models.Vehicle{}) {
			in.Vehicle = req.Vehicle
		}
		if in.ProblemDescription == "" {
			in.ProblemDescription = req.ProblemDescription
		}
		if in.Priority == "" {
			in.Priority = req.Priority
		}
		if q, err = s.build(actor, in); err != nil {
			return err
		}
		q.ServiceRequestID = ptr(req.ID)
		if err := s.insert(ctx, tx, actor, q); err != nil {
			return err
		}

		req.Status = models.RequestConverted
		req.QuotationID = ptr(q.ID)
		if err := tx.UpdateServiceRequest(ctx, req); err != nil {
			return err
		}
		return tx.InsertHistory(ctx, fieldChange(actor, models.EntityServiceRequest, req.ID, "status",
			string(models.RequestOpen), string(models.RequestConverted)))
	})
	if err != nil {
		err = apperr.Wrap("convert service request", err)
		return nil, err
	}

	util.QuotationsCreatedTotal.Inc()
	s.logger.Info("Service request converted", append(util.ActorFields(actor),
		zap.Int64("request_id", requestID),
		zap.String("quotation_number", q.QuotationNumber))...)
	return q, nil
}
