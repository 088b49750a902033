// Package memory provides an in-memory database implementation.
package memory

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-memdb"

	"telecare/database"
)

// DB is a memory-backed database.
type DB struct {
	db             *memdb.MemDB
	maxRoomMembers int
}

// New creates a new memory-backed database.
func New(config database.Config) *DB {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	maxMembers := config.MaxRoomMembers
	if maxMembers == 0 {
		maxMembers = database.DefaultMaxRoomMembers
	}
	return &DB{
		db:             db,
		maxRoomMembers: maxMembers,
	}
}

// CreateClientInfo creates a presence row for the user if absent.
func (d *DB) CreateClientInfo(userID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(tblClients, idxClientID, userID)
	if err != nil {
		return fmt.Errorf("find client by id: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%s: %w", userID, database.ErrClientAlreadyExists)
	}
	info := &database.ClientInfo{
		ID:        userID,
		CreatedAt: time.Now(),
	}
	if err := txn.Insert(tblClients, info); err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	txn.Commit()
	return nil
}

// FindClientInfoByID finds a client by its ID.
func (d *DB) FindClientInfoByID(userID string) (*database.ClientInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tblClients, idxClientID, userID)
	if err != nil {
		return nil, fmt.Errorf("find client by id: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", userID, database.ErrClientNotFound)
	}
	return raw.(*database.ClientInfo).DeepCopy(), nil
}

// DeleteClientInfoByID removes a client's presence row.
func (d *DB) DeleteClientInfoByID(userID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblClients, idxClientID, userID)
	if err != nil {
		return fmt.Errorf("find client by id: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s: %w", userID, database.ErrClientNotFound)
	}
	if err := txn.Delete(tblClients, raw); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	txn.Commit()
	return nil
}

// CreateMemberInfo adds the user to the room. The room is implicit: it
// exists while it has members. Enforces the occupancy cap.
func (d *DB) CreateMemberInfo(roomID, userID string) (*database.MemberInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tblMembers, idxMemberID, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s in %s: %w", userID, roomID, database.ErrMemberAlreadyExists)
	}

	it, err := txn.Get(tblMembers, idxMemberRoomID, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	count := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		count++
	}
	if count >= d.maxRoomMembers {
		return nil, fmt.Errorf("%s: %w", roomID, database.ErrRoomFull)
	}

	info := &database.MemberInfo{
		RoomID:   roomID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	if err := txn.Insert(tblMembers, info); err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	txn.Commit()
	return info.DeepCopy(), nil
}

// FindMemberInfoByRoomID lists the members of a room.
func (d *DB) FindMemberInfoByRoomID(roomID string) ([]*database.MemberInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tblMembers, idxMemberRoomID, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	var members []*database.MemberInfo
	for raw := it.Next(); raw != nil; raw = it.Next() {
		members = append(members, raw.(*database.MemberInfo).DeepCopy())
	}
	return members, nil
}

// FindMemberInfoByUserID lists the rooms a user is in.
func (d *DB) FindMemberInfoByUserID(userID string) ([]*database.MemberInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tblMembers, idxMemberUserID, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	var members []*database.MemberInfo
	for raw := it.Next(); raw != nil; raw = it.Next() {
		members = append(members, raw.(*database.MemberInfo).DeepCopy())
	}
	return members, nil
}

// FindCounterpart returns the other member of the room.
func (d *DB) FindCounterpart(roomID, userID string) (*database.MemberInfo, error) {
	members, err := d.FindMemberInfoByRoomID(roomID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if !m.Is(userID) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("counterpart of %s in %s: %w", userID, roomID, database.ErrMemberNotFound)
}

// DeleteMemberInfo removes the user from the room.
func (d *DB) DeleteMemberInfo(roomID, userID string) error {
	txn := d.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tblMembers, idxMemberID, roomID, userID)
	if err != nil {
		return fmt.Errorf("find member: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%s in %s: %w", userID, roomID, database.ErrMemberNotFound)
	}
	if err := txn.Delete(tblMembers, raw); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	txn.Commit()
	return nil
}
