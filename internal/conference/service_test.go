package conference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voxaide/switchboard/internal/provider"
)

type fakeStore struct {
	conferences  map[string]*Conference
	participants map[string]*Participant
	order        []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conferences:  make(map[string]*Conference),
		participants: make(map[string]*Participant),
	}
}

func (s *fakeStore) CreateConference(_ context.Context, conference *Conference) error {
	s.conferences[conference.ID] = conference
	return nil
}

func (s *fakeStore) GetConferenceByID(_ context.Context, conferenceID string) (*Conference, error) {
	found, ok := s.conferences[conferenceID]
	if !ok {
		return nil, ErrConferenceNotFound
	}

	return found, nil
}

func (s *fakeStore) UpdateConference(_ context.Context, conferenceID string, updates map[string]any) error {
	found, ok := s.conferences[conferenceID]
	if !ok {
		return ErrConferenceNotFound
	}

	for column, value := range updates {
		switch column {
		case "status":
			found.Status = value.(string)
		case "started_at":
			startedAt := value.(time.Time)
			found.StartedAt = &startedAt
		case "ended_at":
			endedAt := value.(time.Time)
			found.EndedAt = &endedAt
		}
	}

	return nil
}

func (s *fakeStore) CreateParticipant(_ context.Context, participant *Participant) error {
	s.participants[participant.ID] = participant
	s.order = append(s.order, participant.ID)

	return nil
}

func (s *fakeStore) GetParticipantByID(_ context.Context, conferenceID, participantID string) (*Participant, error) {
	found, ok := s.participants[participantID]
	if !ok || found.ConferenceID != conferenceID {
		return nil, ErrParticipantNotFound
	}

	return found, nil
}

func (s *fakeStore) GetParticipantByPhone(
	_ context.Context,
	conferenceID, phoneNumber string,
) (*Participant, error) {
	for _, id := range s.order {
		participant := s.participants[id]
		if participant.ConferenceID == conferenceID &&
			participant.PhoneNumber == phoneNumber &&
			participant.Status != ParticipantDisconnected {
			return participant, nil
		}
	}

	return nil, ErrParticipantNotFound
}

func (s *fakeStore) ListParticipants(_ context.Context, conferenceID string) ([]*Participant, error) {
	var participants []*Participant

	for _, id := range s.order {
		if s.participants[id].ConferenceID == conferenceID {
			participants = append(participants, s.participants[id])
		}
	}

	return participants, nil
}

func (s *fakeStore) UpdateParticipant(_ context.Context, participantID string, updates map[string]any) error {
	found, ok := s.participants[participantID]
	if !ok {
		return ErrParticipantNotFound
	}

	for column, value := range updates {
		switch column {
		case "status":
			found.Status = value.(string)
		case "muted":
			found.Muted = value.(bool)
		case "provider_ref":
			found.ProviderRef = value.(string)
		case "joined_at":
			joinedAt := value.(time.Time)
			found.JoinedAt = &joinedAt
		case "left_at":
			leftAt := value.(time.Time)
			found.LeftAt = &leftAt
		}
	}

	return nil
}

type basicAdapter struct {
	vendor provider.Vendor
}

func (a *basicAdapter) Vendor() provider.Vendor { return a.vendor }

func (a *basicAdapter) MakeCall(_ context.Context, _ provider.CallOptions) (string, error) {
	return "", nil
}

func (a *basicAdapter) HandleIncomingCall(_ context.Context, _, _ string) (provider.VoiceResponse, error) {
	return provider.VoiceResponse{}, nil
}

func (a *basicAdapter) UpdateCallStatus(_ context.Context, _ string, _ provider.Status) error {
	return nil
}

func (a *basicAdapter) HandleRecording(_ context.Context, _, _ string) error     { return nil }
func (a *basicAdapter) HandleTranscription(_ context.Context, _, _ string) error { return nil }

func (a *basicAdapter) GenerateCallResponse(_ provider.ResponseOptions) (provider.VoiceResponse, error) {
	return provider.VoiceResponse{}, nil
}

// conferenceAdapter records every AddParticipant attempt, failed ones
// included, so tests can assert fan-out order.
type conferenceAdapter struct {
	basicAdapter

	conferenceID string
	attempted    []string
	removed      []string
	muteCalls    map[string]bool
	ended        []string
	failNumber   string
	nextID       int
}

func (a *conferenceAdapter) CreateConference(_ context.Context, _ provider.ConferenceOptions) (string, error) {
	return a.conferenceID, nil
}

func (a *conferenceAdapter) AddParticipant(_ context.Context, _, phoneNumber string) (string, error) {
	a.attempted = append(a.attempted, phoneNumber)

	if phoneNumber == a.failNumber {
		return "", &provider.ProviderError{Vendor: a.vendor, Op: "add_participant", StatusCode: 502}
	}

	a.nextID++

	return "PA" + string(rune('0'+a.nextID)), nil
}

func (a *conferenceAdapter) RemoveParticipant(_ context.Context, _, participantID string) error {
	a.removed = append(a.removed, participantID)
	return nil
}

func (a *conferenceAdapter) MuteParticipant(_ context.Context, _, participantID string, muted bool) error {
	if a.muteCalls == nil {
		a.muteCalls = make(map[string]bool)
	}

	a.muteCalls[participantID] = muted

	return nil
}

func (a *conferenceAdapter) EndConference(_ context.Context, conferenceID string) error {
	a.ended = append(a.ended, conferenceID)
	return nil
}

func newTestService(store Store, adapter provider.Provider) *Service {
	service := NewService(store, map[provider.Vendor]provider.Provider{adapter.Vendor(): adapter})
	service.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	return service
}

func TestCreateConferencePersistsInvitedRoster(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF100",
	}
	service := newTestService(store, adapter)

	numbers := []string{"+15550000001", "+15550000002", "+15550000003"}

	conference, roster, err := service.CreateConference(
		context.Background(),
		provider.VendorTwilio,
		provider.ConferenceOptions{Name: "standup", MaxParticipants: 5},
		numbers,
	)
	require.NoError(t, err)
	require.Equal(t, "CF100", conference.ID)
	require.Equal(t, "standup", conference.Name)
	require.Equal(t, ConferenceScheduled, conference.Status)
	require.Contains(t, store.conferences, "CF100")

	require.Equal(t, numbers, adapter.attempted)
	require.Len(t, roster, 3)

	for i, participant := range roster {
		require.Equal(t, numbers[i], participant.PhoneNumber)
		require.Equal(t, ParticipantInvited, participant.Status)
		require.NotEmpty(t, participant.ProviderRef)
		require.Nil(t, participant.JoinedAt)
	}
}

func TestCreateConferenceInviteFailureKeepsRoster(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF101",
		failNumber:   "+15550000002",
	}
	service := newTestService(store, adapter)

	numbers := []string{"+15550000001", "+15550000002", "+15550000003"}

	conference, roster, err := service.CreateConference(
		context.Background(),
		provider.VendorTwilio,
		provider.ConferenceOptions{},
		numbers,
	)
	require.Error(t, err)
	require.NotNil(t, conference)

	// Every number is still attempted, in input order, and every row is
	// kept; nothing is rolled back on a mid-roster failure.
	require.Equal(t, numbers, adapter.attempted)
	require.Len(t, roster, 3)
	require.Len(t, store.participants, 3)

	for _, participant := range roster {
		require.Equal(t, ParticipantInvited, participant.Status)
	}
}

func TestCreateConferenceRequiresCapability(t *testing.T) {
	adapter := &basicAdapter{vendor: provider.VendorVapi}
	service := newTestService(newFakeStore(), adapter)

	_, _, err := service.CreateConference(
		context.Background(),
		provider.VendorVapi,
		provider.ConferenceOptions{},
		nil,
	)
	require.ErrorIs(t, err, provider.ErrUnsupported)
}

func TestCreateConferenceRejectsOversizedRoster(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF102",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(
		context.Background(),
		provider.VendorTwilio,
		provider.ConferenceOptions{MaxParticipants: 2},
		[]string{"+15550000001", "+15550000002", "+15550000003"},
	)
	require.ErrorIs(t, err, ErrTooManyParticipants)
	require.Empty(t, store.conferences)
	require.Empty(t, adapter.attempted)
}

func TestAddParticipantsKeepsInputOrder(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF103",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(context.Background(), provider.VendorTwilio, provider.ConferenceOptions{}, nil)
	require.NoError(t, err)

	numbers := []string{"+15550000001", "+15550000002", "+15550000003"}

	joined, err := service.AddParticipants(context.Background(), "CF103", numbers)
	require.NoError(t, err)
	require.Len(t, joined, 3)
	require.Equal(t, numbers, adapter.attempted)

	for i, participant := range joined {
		require.Equal(t, numbers[i], participant.PhoneNumber)
		require.Equal(t, ParticipantConnected, participant.Status)
		require.NotNil(t, participant.JoinedAt)
	}

	conference := store.conferences["CF103"]
	require.Equal(t, ConferenceInProgress, conference.Status)
	require.NotNil(t, conference.StartedAt)
}

func TestAddParticipantsPartialFailure(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF104",
		failNumber:   "+15550000002",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(context.Background(), provider.VendorTwilio, provider.ConferenceOptions{}, nil)
	require.NoError(t, err)

	joined, err := service.AddParticipants(context.Background(), "CF104", []string{
		"+15550000001", "+15550000002", "+15550000003",
	})
	require.Error(t, err)
	require.Len(t, joined, 1)
	require.Equal(t, "+15550000001", joined[0].PhoneNumber)

	// The first participant stays in the conference.
	require.Len(t, store.participants, 1)
}

func TestAddParticipantsWaitingRoom(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF105",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(
		context.Background(),
		provider.VendorTwilio,
		provider.ConferenceOptions{WaitingRoom: true, MuteOnEntry: true},
		nil,
	)
	require.NoError(t, err)

	joined, err := service.AddParticipants(context.Background(), "CF105", []string{"+15550000001"})
	require.NoError(t, err)
	require.Equal(t, ParticipantWaiting, joined[0].Status)
	require.True(t, joined[0].Muted)
	require.Nil(t, joined[0].JoinedAt)

	require.NoError(t, service.AdmitParticipant(context.Background(), "CF105", joined[0].ID))

	stored := store.participants[joined[0].ID]
	require.Equal(t, ParticipantConnected, stored.Status)
	require.NotNil(t, stored.JoinedAt)
}

func TestAddParticipantsPromotesInvitedRow(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF106",
	}
	service := newTestService(store, adapter)

	_, roster, err := service.CreateConference(
		context.Background(),
		provider.VendorTwilio,
		provider.ConferenceOptions{},
		[]string{"+15550000001"},
	)
	require.NoError(t, err)
	require.Len(t, roster, 1)

	joined, err := service.AddParticipants(context.Background(), "CF106", []string{"+15550000001"})
	require.NoError(t, err)
	require.Equal(t, roster[0].ID, joined[0].ID)
	require.Equal(t, ParticipantConnected, joined[0].Status)

	// No duplicate row for a re-invited number.
	require.Len(t, store.participants, 1)
}

func TestAddParticipantsEnforcesLimit(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF107",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(
		context.Background(),
		provider.VendorTwilio,
		provider.ConferenceOptions{MaxParticipants: 2},
		nil,
	)
	require.NoError(t, err)

	joined, err := service.AddParticipants(context.Background(), "CF107", []string{
		"+15550000001", "+15550000002", "+15550000003",
	})
	require.ErrorIs(t, err, ErrTooManyParticipants)
	require.Len(t, joined, 2)
}

func TestAddParticipantsToEndedConference(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF108",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(context.Background(), provider.VendorTwilio, provider.ConferenceOptions{}, nil)
	require.NoError(t, err)
	require.NoError(t, service.EndConference(context.Background(), "CF108"))

	_, err = service.AddParticipants(context.Background(), "CF108", []string{"+15550000001"})
	require.ErrorIs(t, err, ErrConferenceEnded)
}

func TestRemoveParticipantKeepsRow(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF109",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(context.Background(), provider.VendorTwilio, provider.ConferenceOptions{}, nil)
	require.NoError(t, err)

	joined, err := service.AddParticipants(context.Background(), "CF109", []string{"+15550000001"})
	require.NoError(t, err)

	participantID := joined[0].ID

	require.NoError(t, service.RemoveParticipant(context.Background(), "CF109", participantID))
	require.Equal(t, []string{participantID}, adapter.removed)

	stored := store.participants[participantID]
	require.NotNil(t, stored)
	require.Equal(t, ParticipantDisconnected, stored.Status)
	require.NotNil(t, stored.LeftAt)
}

func TestMuteParticipant(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF110",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(context.Background(), provider.VendorTwilio, provider.ConferenceOptions{}, nil)
	require.NoError(t, err)

	joined, err := service.AddParticipants(context.Background(), "CF110", []string{"+15550000001"})
	require.NoError(t, err)

	participantID := joined[0].ID

	require.NoError(t, service.MuteParticipant(context.Background(), "CF110", participantID, true))
	require.True(t, adapter.muteCalls[participantID])
	require.True(t, store.participants[participantID].Muted)

	require.NoError(t, service.MuteParticipant(context.Background(), "CF110", participantID, false))
	require.False(t, store.participants[participantID].Muted)
}

func TestEndConferenceLeavesRosterAlone(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF111",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(context.Background(), provider.VendorTwilio, provider.ConferenceOptions{}, nil)
	require.NoError(t, err)

	_, err = service.AddParticipants(context.Background(), "CF111", []string{"+15550000001", "+15550000002"})
	require.NoError(t, err)

	require.NoError(t, service.EndConference(context.Background(), "CF111"))
	require.Equal(t, []string{"CF111"}, adapter.ended)

	conference := store.conferences["CF111"]
	require.Equal(t, ConferenceCompleted, conference.Status)
	require.NotNil(t, conference.EndedAt)

	// Participant rows are untouched; each leave arrives later through the
	// vendor's own status callbacks.
	for _, participant := range store.participants {
		require.Equal(t, ParticipantConnected, participant.Status)
		require.Nil(t, participant.LeftAt)
	}

	// Ending twice is a no-op; the provider is not called again.
	require.NoError(t, service.EndConference(context.Background(), "CF111"))
	require.Len(t, adapter.ended, 1)
}

func TestGetConferenceIncludesHistory(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF112",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(context.Background(), provider.VendorTwilio, provider.ConferenceOptions{}, nil)
	require.NoError(t, err)

	joined, err := service.AddParticipants(context.Background(), "CF112", []string{"+15550000001", "+15550000002"})
	require.NoError(t, err)

	require.NoError(t, service.RemoveParticipant(context.Background(), "CF112", joined[0].ID))

	_, participants, err := service.GetConference(context.Background(), "CF112")
	require.NoError(t, err)
	require.Len(t, participants, 2)

	_, _, err = service.GetConference(context.Background(), "missing")
	require.ErrorIs(t, err, ErrConferenceNotFound)
}

func TestRemoveParticipantUnknown(t *testing.T) {
	store := newFakeStore()
	adapter := &conferenceAdapter{
		basicAdapter: basicAdapter{vendor: provider.VendorTwilio},
		conferenceID: "CF113",
	}
	service := newTestService(store, adapter)

	_, _, err := service.CreateConference(context.Background(), provider.VendorTwilio, provider.ConferenceOptions{}, nil)
	require.NoError(t, err)

	err = service.RemoveParticipant(context.Background(), "CF113", "missing")
	require.ErrorIs(t, err, ErrParticipantNotFound)
}
