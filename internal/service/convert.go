package service

import (
	"github.com/mmynk/smartsplit/internal/models"
	"github.com/mmynk/smartsplit/pkg/api"
)

func toAPIUser(u *models.User) api.User {
	return api.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func toAPIGroup(g models.Group) api.Group {
	return api.Group{
		ID:          g.ID,
		Name:        g.Name,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   g.CreatedAt,
		MemberCount: g.MemberCount,
	}
}

func toAPIMember(m models.Member) api.Member {
	return api.Member{
		UserID:   m.UserID,
		Username: m.Username,
		Email:    m.Email,
		JoinedAt: m.JoinedAt,
	}
}

func toAPISplits(splits []models.Split) []api.Split {
	out := make([]api.Split, len(splits))
	for i, s := range splits {
		out[i] = api.Split{UserID: s.UserID, Username: s.Username, Amount: s.Amount}
	}
	return out
}

func toAPIExpense(e *models.Expense) api.Expense {
	return api.Expense{
		ID:            e.ID,
		GroupID:       e.GroupID,
		PayerID:       e.PayerID,
		PayerUsername: e.PayerUsername,
		Amount:        e.Amount,
		Description:   e.Description,
		SplitType:     string(e.SplitType),
		CreatedBy:     e.CreatedBy,
		CreatedAt:     e.CreatedAt,
		Splits:        toAPISplits(e.Splits),
	}
}

func toAPIBalance(b models.Balance) api.Balance {
	return api.Balance{
		UserID:    b.UserID,
		Username:  b.Username,
		TotalPaid: b.TotalPaid,
		TotalOwed: b.TotalOwed,
		Net:       b.Net,
	}
}

func toAPISettlement(s models.Settlement) api.Settlement {
	return api.Settlement{
		FromUserID:   s.FromUserID,
		FromUsername: s.FromUsername,
		ToUserID:     s.ToUserID,
		ToUsername:   s.ToUsername,
		Amount:       s.Amount,
	}
}
