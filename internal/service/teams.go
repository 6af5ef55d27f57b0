package service

import (
	"net/url"
	"strconv"
	"strings"

	"dabbathon/internal/domain"
	"dabbathon/internal/livesync"
	"dabbathon/internal/remote"
)

type TeamOptions struct {
	SlotTime         string
	Room             string
	ProblemStatement string
	Username         string
	Password         string
}

// AddTeam creates a team with the next free T<n> id. A blank name falls back to
// the id.
func (o *Operations) AddTeam(name string, opts TeamOptions) domain.Team {
	var team domain.Team
	o.store.Mutate(func(d *domain.AppState) {
		id := d.NextTeamID()
		team = domain.Team{
			ID:               id,
			Name:             strings.TrimSpace(name),
			SlotTime:         strings.TrimSpace(opts.SlotTime),
			Room:             domain.NormalizeRoom(opts.Room),
			ProblemStatement: opts.ProblemStatement,
			Username:         opts.Username,
			Password:         opts.Password,
		}
		if team.Name == "" {
			team.Name = id
		}
		d.Teams[id] = team
	})
	o.push(set(remote.CollTeams, team.ID, livesync.EncodeTeam(team)))
	o.logger.Info().Str("team_id", team.ID).Str("name", team.Name).Msg("team added")
	return team
}

// updateTeam applies fn to an existing team and pushes the merged document.
func (o *Operations) updateTeam(id string, fn func(t *domain.Team)) error {
	var (
		team  domain.Team
		found bool
	)
	o.store.Mutate(func(d *domain.AppState) {
		team, found = d.Teams[id]
		if !found {
			return
		}
		fn(&team)
		d.Teams[id] = team
	})
	if !found {
		return domain.ErrUnknownTeam
	}
	o.push(merge(remote.CollTeams, id, livesync.EncodeTeam(team)))
	return nil
}

func (o *Operations) RenameTeam(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrBlankName
	}
	return o.updateTeam(id, func(t *domain.Team) { t.Name = name })
}

func (o *Operations) SetTeamSlot(id, slotTime string) error {
	return o.updateTeam(id, func(t *domain.Team) { t.SlotTime = strings.TrimSpace(slotTime) })
}

func (o *Operations) SetTeamRoom(id, room string) error {
	return o.updateTeam(id, func(t *domain.Team) { t.Room = domain.NormalizeRoom(room) })
}

func (o *Operations) SetTeamProblem(id, problem string) error {
	return o.updateTeam(id, func(t *domain.Team) { t.ProblemStatement = problem })
}

func (o *Operations) SetTeamFinalist(id string, finalist bool) error {
	return o.updateTeam(id, func(t *domain.Team) { t.Finalist = finalist })
}

func (o *Operations) SetTeamCredential(id, username, password string) error {
	return o.updateTeam(id, func(t *domain.Team) {
		t.Username = username
		t.Password = password
	})
}

// SubmitFile records a submission link for a round. The link must be an
// absolute URL.
func (o *Operations) SubmitFile(round int, teamID, link string) error {
	if !domain.ValidRound(round) {
		return domain.ErrInvalidRound
	}
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return domain.ErrInvalidURL
	}
	return o.updateTeam(teamID, func(t *domain.Team) {
		subs := make(map[string]string, len(t.Submissions)+1)
		for k, v := range t.Submissions {
			subs[k] = v
		}
		subs[strconv.Itoa(round)] = link
		t.Submissions = subs
	})
}

// RemoveTeam deletes the team. Its scores and notifications stay unless
// CASCADE_TEAM_REMOVAL is enabled.
func (o *Operations) RemoveTeam(id string) error {
	cascade := o.cfg != nil && o.cfg.CascadeTeamRemoval

	var (
		found  bool
		writes []remote.Write
	)
	o.store.Mutate(func(d *domain.AppState) {
		if _, found = d.Teams[id]; !found {
			return
		}
		delete(d.Teams, id)
		writes = append(writes, del(remote.CollTeams, id))
		if !cascade {
			return
		}
		for round, entries := range d.Scores {
			for _, e := range entries {
				if e.TeamID == id {
					writes = append(writes, del(remote.ScoreCollection(round), remote.ScoreDocID(e.TeamID, e.MetricID)))
				}
			}
		}
		for _, n := range d.Notifications {
			if n.TeamID == id && !isTemporary(n.ID) {
				writes = append(writes, del(remote.CollNotifications, n.ID))
			}
		}
		d.PurgeTeam(id)
		for key := range d.TimerState.Teams {
			if strings.HasSuffix(key, ":"+id) {
				delete(d.TimerState.Teams, key)
			}
		}
	})
	if !found {
		return domain.ErrUnknownTeam
	}
	o.push(writes...)
	o.logger.Info().Str("team_id", id).Bool("cascade", cascade).Int("writes", len(writes)).Msg("team removed")
	return nil
}
