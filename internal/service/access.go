package service

import (
	"crypto/subtle"

	"dabbathon/internal/domain"
)

const (
	RoleAdmin       = "admin"
	RoleInvigilator = "invigilator"
)

func secretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// LoginTeam checks a team's username and password.
func (o *Operations) LoginTeam(teamID, username, password string) (domain.Team, error) {
	t, ok := o.store.Get().Teams[teamID]
	if !ok || t.Password == "" {
		return domain.Team{}, domain.ErrInvalidCredentials
	}
	if t.Username != username || !secretEqual(t.Password, password) {
		return domain.Team{}, domain.ErrInvalidCredentials
	}
	return t, nil
}

// LoginTeamByPassword finds the team, in id order, whose password matches.
func (o *Operations) LoginTeamByPassword(password string) (domain.Team, error) {
	if password == "" {
		return domain.Team{}, domain.ErrInvalidCredentials
	}
	for _, t := range o.store.Get().SortedTeams() {
		if t.Password != "" && secretEqual(t.Password, password) {
			return t, nil
		}
	}
	return domain.Team{}, domain.ErrInvalidCredentials
}

// CheckPasskey validates a shared role passkey. A role without a configured
// passkey cannot log in.
func (o *Operations) CheckPasskey(role, passkey string) error {
	var want string
	switch role {
	case RoleAdmin:
		if o.cfg != nil {
			want = o.cfg.AdminPasskey
		}
	case RoleInvigilator:
		if o.cfg != nil {
			want = o.cfg.InvigilatorPasskey
		}
	default:
		return domain.ErrUnknownRole
	}
	if want == "" || !secretEqual(want, passkey) {
		return domain.ErrInvalidCredentials
	}
	return nil
}

func (o *Operations) LoginRoom(roomID, password string) (domain.Room, error) {
	r, ok := o.store.Get().Rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrUnknownRoom
	}
	if r.Password != "" && !secretEqual(r.Password, password) {
		return domain.Room{}, domain.ErrInvalidCredentials
	}
	return r, nil
}
