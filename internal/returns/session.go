package returns

import "returnbox_back_end/internal/models"

// Session identifie l'acteur d'une opération. Elle est passée explicitement à chaque appel,
// jamais lue dans un état global.
type Session struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

func (s *Session) IsMerchant() bool {
	return s != nil && s.Role == models.RoleMerchant
}

func (s *Session) IsCustomer() bool {
	return s != nil && s.Role == models.RoleCustomer
}
