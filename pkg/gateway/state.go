package gateway

import (
	"github.com/greenbasket/storefront/pkg/cart"
	"github.com/greenbasket/storefront/pkg/session"
)

// State is what a browser renders: who is logged in and what is in the
// cart.
type State struct {
	Session session.Session `json:"session"`
	Loading bool            `json:"loading"`
	Cart    cart.Snapshot   `json:"cart"`
}

func stateOf(bc *browserContext) State {
	return State{
		Session: bc.App.Session.Current(),
		Loading: bc.App.Session.Loading(),
		Cart:    bc.App.Cart.Snapshot(),
	}
}
