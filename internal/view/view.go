// Package view turns an activities snapshot into the board's view tree and
// renders that tree as HTML.
//
// Render is pure: the list and dropdown are a function of the snapshot
// alone, never patched in place.
package view

import (
	"github.com/Shivanand-hulikatti/activity-board/internal/model"
)

// Translator supplies the localized strings the view owns.
type Translator interface {
	T(key string, data map[string]any) string
}

// RemoveRole is the control role carried by participant removal buttons.
const RemoveRole = "participant-remove"

// List is the rendered content of the activities container and the select control.
type List struct {
	Cards   []Card   `json:"cards"`
	Options []Option `json:"options"`
	// Notice replaces the cards while loading or after a failed fetch.
	Notice string `json:"notice,omitempty"`
}

// Card is one activity in the list.
type Card struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Schedule     string            `json:"schedule"`
	SpotsLeft    int               `json:"spots_left"`
	SpotsLine    string            `json:"spots_line"`
	Full         bool              `json:"full"`
	Participants []ParticipantItem `json:"participants"`
	EmptyNotice  string            `json:"empty_notice,omitempty"`
}

// ParticipantItem is a roster entry with its removal control.
type ParticipantItem struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Activity    string `json:"activity"`
	Role        string `json:"role"`
	RemoveLabel string `json:"remove_label"`
	RemoveTitle string `json:"remove_title"`
}

// Option is an entry of the activity select control.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Form is the signup form's field state.
type Form struct {
	Email    string `json:"email"`
	Activity string `json:"activity"`
}

// Page is everything needed to draw the board for one session.
type Page struct {
	Lang    string         `json:"lang"`
	List    List           `json:"list"`
	Form    Form           `json:"form"`
	Message *model.Message `json:"message,omitempty"`

	// MessageRemainingMS is how long Message stays up, counted from when
	// the page was built.
	MessageRemainingMS int64 `json:"message_remaining_ms,omitempty"`
}

// Loading is the list shown before the first fetch completes.
func Loading(tr Translator) List {
	return List{
		Options: []Option{placeholder(tr)},
		Notice:  tr.T("loading", nil),
	}
}

// Render builds the list for snapshot, keeping its order.
func Render(snapshot model.Snapshot, tr Translator) List {
	list := List{
		Cards:   make([]Card, 0, len(snapshot)),
		Options: make([]Option, 0, len(snapshot)+1),
	}
	list.Options = append(list.Options, placeholder(tr))

	for i := range snapshot {
		a := &snapshot[i]
		spots := a.SpotsLeft()
		card := Card{
			Name:        a.Name,
			Description: a.Description,
			Schedule:    a.Schedule,
			SpotsLeft:   spots,
			SpotsLine:   tr.T("spots_left", map[string]any{"Count": spots}),
			Full:        a.IsFull(),
		}
		if len(a.Participants) == 0 {
			card.EmptyNotice = tr.T("no_participants", nil)
		}
		for _, email := range a.Participants {
			card.Participants = append(card.Participants, ParticipantItem{
				DisplayName: model.DisplayName(email),
				Email:       email,
				Activity:    a.Name,
				Role:        RemoveRole,
				RemoveLabel: tr.T("remove_label", map[string]any{"Email": email, "Activity": a.Name}),
				RemoveTitle: tr.T("remove_title", nil),
			})
		}
		list.Cards = append(list.Cards, card)
		list.Options = append(list.Options, Option{Value: a.Name, Label: a.Name})
	}
	return list
}

// Failed replaces the cards with the load failure notice. The select keeps
// the options of the previous render.
func Failed(previous List, tr Translator) List {
	options := previous.Options
	if len(options) == 0 {
		options = []Option{placeholder(tr)}
	}
	return List{
		Options: options,
		Notice:  tr.T("load_failed", nil),
	}
}

func placeholder(tr Translator) Option {
	return Option{Value: "", Label: tr.T("select_placeholder", nil)}
}
