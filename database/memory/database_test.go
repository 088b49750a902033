package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"telecare/database"
	"telecare/database/memory"
)

func TestClientInfo(t *testing.T) {
	t.Run("given new user when created then it is findable", func(t *testing.T) {
		db := memory.New(database.Config{})
		assert.NoError(t, db.CreateClientInfo("doctor-1"))

		info, err := db.FindClientInfoByID("doctor-1")
		assert.NoError(t, err)
		assert.Equal(t, "doctor-1", info.ID)
		assert.False(t, info.CreatedAt.IsZero())
	})

	t.Run("given existing user when created again then error", func(t *testing.T) {
		db := memory.New(database.Config{})
		assert.NoError(t, db.CreateClientInfo("doctor-1"))
		assert.ErrorIs(t, db.CreateClientInfo("doctor-1"), database.ErrClientAlreadyExists)
	})

	t.Run("given unknown user when found then error", func(t *testing.T) {
		db := memory.New(database.Config{})
		_, err := db.FindClientInfoByID("ghost")
		assert.ErrorIs(t, err, database.ErrClientNotFound)
	})

	t.Run("given deleted user when found then error", func(t *testing.T) {
		db := memory.New(database.Config{})
		assert.NoError(t, db.CreateClientInfo("doctor-1"))
		assert.NoError(t, db.DeleteClientInfoByID("doctor-1"))
		_, err := db.FindClientInfoByID("doctor-1")
		assert.ErrorIs(t, err, database.ErrClientNotFound)
		assert.ErrorIs(t, db.DeleteClientInfoByID("doctor-1"), database.ErrClientNotFound)
	})
}

func TestMemberInfo(t *testing.T) {
	t.Run("given empty room when joined then member is listed", func(t *testing.T) {
		db := memory.New(database.Config{})
		member, err := db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)
		assert.Equal(t, "room-1", member.RoomID)

		members, err := db.FindMemberInfoByRoomID("room-1")
		assert.NoError(t, err)
		assert.Len(t, members, 1)
		assert.True(t, members[0].Is("doctor-1"))
	})

	t.Run("given member when joined again then error", func(t *testing.T) {
		db := memory.New(database.Config{})
		_, err := db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)
		_, err = db.CreateMemberInfo("room-1", "doctor-1")
		assert.ErrorIs(t, err, database.ErrMemberAlreadyExists)
	})

	t.Run("given full room when third member joins then room full", func(t *testing.T) {
		db := memory.New(database.Config{})
		_, err := db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)
		_, err = db.CreateMemberInfo("room-1", "patient-7")
		assert.NoError(t, err)
		_, err = db.CreateMemberInfo("room-1", "intruder")
		assert.ErrorIs(t, err, database.ErrRoomFull)
	})

	t.Run("given custom cap when exceeded then room full", func(t *testing.T) {
		db := memory.New(database.Config{MaxRoomMembers: 1})
		_, err := db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)
		_, err = db.CreateMemberInfo("room-1", "patient-7")
		assert.ErrorIs(t, err, database.ErrRoomFull)
	})

	t.Run("given member of two rooms when listed by user then both returned", func(t *testing.T) {
		db := memory.New(database.Config{})
		_, err := db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)
		_, err = db.CreateMemberInfo("room-2", "doctor-1")
		assert.NoError(t, err)

		memberships, err := db.FindMemberInfoByUserID("doctor-1")
		assert.NoError(t, err)
		assert.Len(t, memberships, 2)
	})

	t.Run("given two members when counterpart found then the other is returned", func(t *testing.T) {
		db := memory.New(database.Config{})
		_, err := db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)
		_, err = db.CreateMemberInfo("room-1", "patient-7")
		assert.NoError(t, err)

		counterpart, err := db.FindCounterpart("room-1", "doctor-1")
		assert.NoError(t, err)
		assert.True(t, counterpart.Is("patient-7"))
	})

	t.Run("given lone member when counterpart found then not found", func(t *testing.T) {
		db := memory.New(database.Config{})
		_, err := db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)
		_, err = db.FindCounterpart("room-1", "doctor-1")
		assert.ErrorIs(t, err, database.ErrMemberNotFound)
	})

	t.Run("given member when deleted then room empties", func(t *testing.T) {
		db := memory.New(database.Config{})
		_, err := db.CreateMemberInfo("room-1", "doctor-1")
		assert.NoError(t, err)
		assert.NoError(t, db.DeleteMemberInfo("room-1", "doctor-1"))

		members, err := db.FindMemberInfoByRoomID("room-1")
		assert.NoError(t, err)
		assert.Empty(t, members)
		assert.ErrorIs(t, db.DeleteMemberInfo("room-1", "doctor-1"), database.ErrMemberNotFound)
	})
}
