package backend

import "github.com/mahaj/chat-feed/pkg/model"

// DemoPassword is the password of every seeded account.
const DemoPassword = "secret123"

// Seed registers a few demo accounts, makes them friends and exchanges some
// messages so a fresh development server has a non-empty feed.
func Seed(s *Store) ([]model.UserProfile, error) {
	people := [][2]string{{"Ada", "Lovelace"}, {"Alan", "Turing"}, {"Grace", "Hopper"}}
	users := make([]model.UserProfile, 0, len(people))
	for _, p := range people {
		u, err := s.Register(model.RegisterRequest{
			FirstName: p[0],
			LastName:  p[1],
			Email:     p[0] + "@example.com",
			Password:  DemoPassword,
		})
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	for _, other := range users[1:] {
		r, err := s.RequestFriend(other.ID, users[0].ID)
		if err != nil {
			return nil, err
		}
		if err := s.AcceptRequest(users[0].ID, r.ID); err != nil {
			return nil, err
		}
	}

	script := []struct {
		from, to int
		text     string
	}{
		{1, 0, "Have you seen the new engine notes?"},
		{0, 1, "Reading them now"},
		{2, 0, "Found a moth in the relay"},
	}
	for _, line := range script {
		if _, err := s.SendMessage(users[line.from].ID, users[line.to].ID, line.text); err != nil {
			return nil, err
		}
	}
	return users, nil
}
