package shared

import "time"

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type UserMetadata struct {
	UserID   uint64 `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

// Plan is a purchasable credit bundle. Amount is in whole currency units.
type Plan struct {
	Name    string
	Credits int64
	Amount  int64
}

var Plans = map[string]Plan{
	"Basic":    {Name: "Basic", Credits: 25, Amount: 10},
	"Advanced": {Name: "Advanced", Credits: 70, Amount: 30},
	"Premier":  {Name: "Premier", Credits: 150, Amount: 50},
}

// CreditHistoryEntry is one row of the merged purchase/usage view.
type CreditHistoryEntry struct {
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
}
