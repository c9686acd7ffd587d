package core

import (
	"sort"
	"strings"
	"sync"
)

const maxChannelName = 32

// ChannelInfo is a point-in-time view of one channel.
type ChannelInfo struct {
	Name    string
	Members int
}

// Directory maps channel names to members and connections to their channels.
// A connection occupies at most one channel at a time.
type Directory struct {
	mu           sync.RWMutex
	rooms        map[string]*Room
	memberOf     map[*Client]string
	collectEmpty bool
}

// NewDirectory creates an empty directory. With collectEmpty set, a channel
// is dropped when its last member leaves unless it was seeded with Ensure.
func NewDirectory(collectEmpty bool) *Directory {
	return &Directory{
		rooms:        make(map[string]*Room),
		memberOf:     make(map[*Client]string),
		collectEmpty: collectEmpty,
	}
}

// NormalizeChannel trims, lower-cases and prefixes name with '#'.
func NormalizeChannel(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	body := strings.TrimPrefix(name, "#")
	if body == "" || len(body) > maxChannelName {
		return "", ErrInvalidChannel
	}
	for _, r := range body {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return "", ErrInvalidChannel
		}
	}
	return "#" + body, nil
}

// Ensure creates a channel if absent and pins it against collection.
func (d *Directory) Ensure(name string) (string, error) {
	norm, err := NormalizeChannel(name)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[norm]
	if !ok {
		room = NewRoom(norm)
		d.rooms[norm] = room
	}
	room.seeded = true
	return norm, nil
}

// Join moves c into the named channel, creating it if needed.
// It returns the normalized name and the channel c left, if any.
func (d *Directory) Join(c *Client, name string) (joined, left string, err error) {
	norm, err := NormalizeChannel(name)
	if err != nil {
		return "", "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.memberOf[c]; ok {
		if prev == norm {
			return norm, "", nil
		}
		d.removeLocked(c, prev)
		left = prev
	}

	room, ok := d.rooms[norm]
	if !ok {
		room = NewRoom(norm)
		d.rooms[norm] = room
	}
	room.AddClient(c)
	d.memberOf[c] = norm
	return norm, left, nil
}

// Leave removes c from the named channel, or from its current one when name
// is empty. ErrNotInChannel is returned if c is not a member.
func (d *Directory) Leave(c *Client, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.memberOf[c]
	if !ok {
		return "", ErrNotInChannel
	}
	if name != "" {
		norm, err := NormalizeChannel(name)
		if err != nil {
			return "", err
		}
		if norm != current {
			return "", ErrNotInChannel
		}
	}
	d.removeLocked(c, current)
	return current, nil
}

// RemoveEverywhere drops c from every channel and returns the channels it left.
func (d *Directory) RemoveEverywhere(c *Client) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.memberOf[c]
	if !ok {
		return nil
	}
	d.removeLocked(c, current)
	return []string{current}
}

func (d *Directory) removeLocked(c *Client, name string) {
	delete(d.memberOf, c)
	room, ok := d.rooms[name]
	if !ok {
		return
	}
	room.RemoveClient(c)
	if d.collectEmpty && room.Empty() && !room.seeded {
		delete(d.rooms, name)
	}
}

// Current returns the channel c occupies, or "".
func (d *Directory) Current(c *Client) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.memberOf[c]
}

// IsMember reports whether c currently belongs to the named channel.
func (d *Directory) IsMember(c *Client, name string) bool {
	norm, err := NormalizeChannel(name)
	if err != nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.memberOf[c] == norm
}

// List returns every channel with its member count, ordered by name.
func (d *Directory) List() []ChannelInfo {
	d.mu.RLock()
	out := make([]ChannelInfo, 0, len(d.rooms))
	for name, room := range d.rooms {
		out = append(out, ChannelInfo{Name: name, Members: room.Len()})
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the channel names, ordered.
func (d *Directory) Names() []string {
	list := d.List()
	names := make([]string, 0, len(list))
	for _, ch := range list {
		names = append(names, ch.Name)
	}
	return names
}

// Who returns the sorted usernames in a channel.
func (d *Directory) Who(name string) ([]string, error) {
	members, err := d.Members(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(members))
	for _, c := range members {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Members returns a snapshot of the connections in a channel.
func (d *Directory) Members(name string) ([]*Client, error) {
	norm, err := NormalizeChannel(name)
	if err != nil {
		return nil, ErrChannelNotFound
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[norm]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return room.Snapshot(), nil
}
