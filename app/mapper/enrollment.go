package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/types"
)

func EnrollmentToResponse(item *entity.Enrollment) *types.Enrollment {
	if item == nil {
		return nil
	}

	completedAt := ""
	if item.CompletedAt != nil {
		completedAt = item.CompletedAt.UTC().Format(time.RFC3339)
	}

	return &types.Enrollment{
		Id:               item.ID,
		UserId:           item.UserID,
		ItemType:         item.ItemType,
		ItemId:           item.ItemID,
		ItemName:         item.ItemName,
		AmountCents:      item.AmountCents,
		Quantity:         item.Quantity,
		Currency:         item.Currency,
		PaymentSessionId: item.PaymentSessionID,
		Status:           entity.StatusName(item.Status),
		CreatedAt:        item.CreatedAt.UTC().Format(time.RFC3339),
		CompletedAt:      completedAt,
	}
}

func EnrollmentsToResponse(items []*entity.Enrollment) []*types.Enrollment {
	result := make([]*types.Enrollment, 0, len(items))
	for _, item := range items {
		result = append(result, EnrollmentToResponse(item))
	}
	return result
}
