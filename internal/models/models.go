package models

import (
	"sort"
	"time"
)

// User represents a registered account together with the two id sets it owns.
type User struct {
	ID             int64
	Login          string
	Password       string
	APIKey         string
	CreatedAt      time.Time
	// Version counts saves; a save carrying an older value is rejected.
	Version        int64
	FavoriteActors IDSet
	WatchedMovies  IDSet
}

// NewUser returns a user with initialised, empty id sets.
func NewUser(login, password, apiKey string) User {
	return User{
		Login:          login,
		Password:       password,
		APIKey:         apiKey,
		FavoriteActors: NewIDSet(),
		WatchedMovies:  NewIDSet(),
	}
}

// IDSet is a set of upstream catalog identifiers. Membership is by value.
type IDSet map[int64]struct{}

// NewIDSet builds a set from the provided ids, collapsing duplicates.
func NewIDSet(ids ...int64) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Add inserts id and reports whether it was not already present.
func (s IDSet) Add(id int64) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s IDSet) Remove(id int64) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

// Has reports whether id is a member. Safe on a nil set.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members.
func (s IDSet) Len() int {
	return len(s)
}

// Slice returns the members in ascending order.
func (s IDSet) Slice() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
