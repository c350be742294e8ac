package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is an inbound callback decoded once at the transport boundary.
// Handlers switch on the concrete type instead of re-parsing token strings.
type Action interface{ isAction() }

type (
	// MainMenu returns the user to the main menu.
	MainMenu struct{}
	// AddProduct asks the user for an article to track.
	AddProduct struct{}
	// RemoveMenu shows the product removal picker.
	RemoveMenu struct{}
	// ListProducts opens the first page of the tracked product list.
	ListProducts struct{}
	// CheckPrices runs a manual price check.
	CheckPrices struct{}
	// IntervalMenu shows the notification interval picker.
	IntervalMenu struct{}
	// RemoveProduct removes one tracked article.
	RemoveProduct struct{ Article string }
	// OpenPage opens a specific page of the tracked product list.
	OpenPage struct{ Page int }
	// SetInterval sets the chat's notification cadence in minutes.
	SetInterval struct{ Minutes int }
)

func (MainMenu) isAction()      {}
func (AddProduct) isAction()    {}
func (RemoveMenu) isAction()    {}
func (ListProducts) isAction()  {}
func (CheckPrices) isAction()   {}
func (IntervalMenu) isAction()  {}
func (RemoveProduct) isAction() {}
func (OpenPage) isAction()      {}
func (SetInterval) isAction()   {}

// DecodeAction parses a callback data token into its Action variant.
func DecodeAction(data string) (Action, error) {
	switch data {
	case "main_menu":
		return MainMenu{}, nil
	case "add_product":
		return AddProduct{}, nil
	case "remove_product":
		return RemoveMenu{}, nil
	case "list_products":
		return ListProducts{}, nil
	case "check_prices":
		return CheckPrices{}, nil
	case "notification_settings":
		return IntervalMenu{}, nil
	}

	switch {
	case strings.HasPrefix(data, "remove_"):
		article := strings.TrimPrefix(data, "remove_")
		if article == "" {
			return nil, fmt.Errorf("callback %q: empty article", data)
		}
		return RemoveProduct{Article: article}, nil
	case strings.HasPrefix(data, "page_next_"), strings.HasPrefix(data, "page_prev_"):
		page, err := strconv.Atoi(data[len("page_next_"):])
		if err != nil || page < 1 {
			return nil, fmt.Errorf("callback %q: bad page number", data)
		}
		return OpenPage{Page: page}, nil
	case strings.HasPrefix(data, "interval_"):
		minutes, err := strconv.Atoi(strings.TrimPrefix(data, "interval_"))
		if err != nil || minutes < 1 {
			return nil, fmt.Errorf("callback %q: bad interval", data)
		}
		return SetInterval{Minutes: minutes}, nil
	}
	return nil, fmt.Errorf("unknown callback token %q", data)
}
