package core

// ScopeKind selects how a message's recipients are computed.
type ScopeKind int

const (
	// ScopeChannel delivers to the members of one channel.
	ScopeChannel ScopeKind = iota
	// ScopePrivate delivers to a single logged-in user.
	ScopePrivate
	// ScopeGlobal delivers to every authenticated connection.
	ScopeGlobal
)

// Scope is the intended recipient set of an outbound message.
type Scope struct {
	Kind    ScopeKind
	Channel string
	Target  string
}

// ChannelScope targets the members of a channel.
func ChannelScope(name string) Scope { return Scope{Kind: ScopeChannel, Channel: name} }

// PrivateScope targets one user.
func PrivateScope(username string) Scope { return Scope{Kind: ScopePrivate, Target: username} }

// GlobalScope targets every authenticated connection.
func GlobalScope() Scope { return Scope{Kind: ScopeGlobal} }

// Dispatcher computes recipient sets and hands frames to their queues.
// Recipient sets are snapshots; no lock is held while queueing.
type Dispatcher struct {
	sessions  *Sessions
	directory *Directory
}

// NewDispatcher creates a dispatcher over the given registries.
func NewDispatcher(sessions *Sessions, directory *Directory) *Dispatcher {
	return &Dispatcher{sessions: sessions, directory: directory}
}

// Delivery reports the outcome of one dispatch.
type Delivery struct {
	Delivered int
	Dropped   int
}

// Dispatch delivers frame from sender to scope, never back to the sender.
// A channel that does not exist or that sender is not in yields an empty
// delivery. A private target without a session yields ErrUserNotFound.
func (d *Dispatcher) Dispatch(sender *Client, frame []byte, scope Scope) (Delivery, error) {
	var recipients []*Client

	switch scope.Kind {
	case ScopeChannel:
		members, err := d.directory.Members(scope.Channel)
		if err != nil {
			return Delivery{}, nil
		}
		if sender != nil && !contains(members, sender) {
			return Delivery{}, nil
		}
		recipients = members
	case ScopePrivate:
		sess, ok := d.sessions.Lookup(scope.Target)
		if !ok {
			return Delivery{}, ErrUserNotFound
		}
		if sess.Client == sender {
			return Delivery{}, nil
		}
		recipients = []*Client{sess.Client}
	case ScopeGlobal:
		for _, sess := range d.sessions.All() {
			recipients = append(recipients, sess.Client)
		}
	}

	var out Delivery
	for _, c := range recipients {
		if c == sender {
			continue
		}
		if c.Send(frame) {
			out.Delivered++
		} else {
			out.Dropped++
		}
	}
	return out, nil
}

func contains(list []*Client, c *Client) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}
