package security

import "crypto/subtle"

// Client is an API consumer allowed to call the settlement endpoints.
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"orders.read","orders.write","orders.admin"}
	Enabled bool
}

// ClientRegistry is an in-memory client store (replace with DB/config later).
type ClientRegistry struct {
	clients map[string]Client
}

func NewClientRegistry(clients ...Client) *ClientRegistry {
	r := &ClientRegistry{clients: make(map[string]Client, len(clients))}
	for _, cl := range clients {
		r.clients[cl.ID] = cl
	}
	return r
}

// DefaultClients covers the storefront and the back-office console.
func DefaultClients() *ClientRegistry {
	return NewClientRegistry(
		Client{ID: "storefront", Secret: "storefront-secret", Perms: []string{"orders.read", "orders.write"}, Enabled: true},
		Client{ID: "back-office", Secret: "back-office-secret", Perms: []string{"orders.read", "orders.write", "orders.admin"}, Enabled: true},
	)
}

// Authenticate verifies the client credentials. Secret comparison is
// constant time.
func (r *ClientRegistry) Authenticate(id, secret string) (Client, bool) {
	cl, ok := r.clients[id]
	if !ok || !cl.Enabled {
		return Client{}, false
	}
	if subtle.ConstantTimeCompare([]byte(cl.Secret), []byte(secret)) != 1 {
		return Client{}, false
	}
	return cl, true
}
