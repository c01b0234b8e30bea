package character_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-narrator/internal/repositories/character"
	"github.com/KirkDiggler/rpg-narrator/internal/testutils"
)

const (
	testCharID = "char_123"
	testUserID = "user_456"
)

type RedisRepositoryTestSuite struct {
	suite.Suite
	ctx  context.Context
	mr   *miniredis.Miniredis
	repo character.Repository
	now  time.Time
}

func TestRedisRepositorySuite(t *testing.T) {
	suite.Run(t, new(RedisRepositoryTestSuite))
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	client, mr := testutils.CreateTestRedisClient(s.T())
	s.mr = mr
	s.now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	repo, err := character.NewRedis(&character.RedisConfig{
		Client: client,
		Clock:  clock.NewFixed(s.now),
	})
	s.Require().NoError(err)
	s.repo = repo
}

func (s *RedisRepositoryTestSuite) testCharacter() *entities.Character {
	return &entities.Character{
		ID:     testCharID,
		UserID: testUserID,
		Name:   "Test Hero",
		Class:  entities.ClassRogue,
		Level:  1,
		HP:     9, MaxHP: 9, Gold: 15,
		Inventory: []entities.InventoryItem{{ItemID: "dagger", Name: "Dagger", Quantity: 2, Type: entities.ItemTypeWeapon, Weight: 10}},
	}
}

func (s *RedisRepositoryTestSuite) TestNewRedisRequiresClient() {
	_, err := character.NewRedis(&character.RedisConfig{})
	s.True(errors.IsInvalidArgument(err))
	_, err = character.NewRedis(nil)
	s.True(errors.IsInvalidArgument(err))
}

func (s *RedisRepositoryTestSuite) TestCreateAndGet() {
	created, err := s.repo.Create(s.ctx, character.CreateInput{Character: s.testCharacter()})
	s.Require().NoError(err)
	s.Equal(s.now.Unix(), created.Character.CreatedAt)

	got, err := s.repo.Get(s.ctx, character.GetInput{ID: testCharID})
	s.Require().NoError(err)
	s.Equal(created.Character, got.Character)

	members, err := s.mr.SMembers("character:user:" + testUserID)
	s.Require().NoError(err)
	s.Equal([]string{testCharID}, members)
}

func (s *RedisRepositoryTestSuite) TestCreateDuplicate() {
	_, err := s.repo.Create(s.ctx, character.CreateInput{Character: s.testCharacter()})
	s.Require().NoError(err)

	_, err = s.repo.Create(s.ctx, character.CreateInput{Character: s.testCharacter()})
	s.True(errors.IsAlreadyExists(err))
}

func (s *RedisRepositoryTestSuite) TestCreateValidation() {
	_, err := s.repo.Create(s.ctx, character.CreateInput{})
	s.True(errors.IsInvalidArgument(err))

	_, err = s.repo.Create(s.ctx, character.CreateInput{Character: &entities.Character{}})
	s.True(errors.IsInvalidArgument(err))
}

func (s *RedisRepositoryTestSuite) TestGetNotFound() {
	_, err := s.repo.Get(s.ctx, character.GetInput{ID: "missing"})
	s.True(errors.IsNotFound(err))

	_, err = s.repo.Get(s.ctx, character.GetInput{})
	s.True(errors.IsInvalidArgument(err))
}

func (s *RedisRepositoryTestSuite) TestDelete() {
	_, err := s.repo.Create(s.ctx, character.CreateInput{Character: s.testCharacter()})
	s.Require().NoError(err)

	_, err = s.repo.Delete(s.ctx, character.DeleteInput{ID: testCharID})
	s.Require().NoError(err)

	s.False(s.mr.Exists(character.Key(testCharID)))
	_, err = s.repo.Delete(s.ctx, character.DeleteInput{ID: testCharID})
	s.True(errors.IsNotFound(err))
}

func (s *RedisRepositoryTestSuite) TestListByUserIDCleansStaleIndex() {
	_, err := s.repo.Create(s.ctx, character.CreateInput{Character: s.testCharacter()})
	s.Require().NoError(err)
	_, err = s.mr.SAdd("character:user:"+testUserID, "char_gone")
	s.Require().NoError(err)

	out, err := s.repo.ListByUserID(s.ctx, character.ListByUserIDInput{UserID: testUserID})
	s.Require().NoError(err)
	s.Require().Len(out.Characters, 1)
	s.Equal(testCharID, out.Characters[0].ID)

	members, err := s.mr.SMembers("character:user:" + testUserID)
	s.Require().NoError(err)
	s.Equal([]string{testCharID}, members)
}
