// Package memory provides an in-memory database implementation.
package memory

import "github.com/hashicorp/go-memdb"

const (
	tblClients = "clients"
	tblMembers = "members"
)

const (
	idxClientID     = "id"
	idxMemberID     = "id"
	idxMemberRoomID = "room_id"
	idxMemberUserID = "user_id"
)

// schema is the schema of the memory database.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblClients: {
			Name: tblClients,
			Indexes: map[string]*memdb.IndexSchema{
				idxClientID: {
					Name:    idxClientID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
			},
		},
		tblMembers: {
			Name: tblMembers,
			Indexes: map[string]*memdb.IndexSchema{
				idxMemberID: {
					Name:   idxMemberID,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "RoomID"},
							&memdb.StringFieldIndex{Field: "UserID"},
						},
					},
				},
				idxMemberRoomID: {
					Name:    idxMemberRoomID,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "RoomID"},
				},
				idxMemberUserID: {
					Name:    idxMemberUserID,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "UserID"},
				},
			},
		},
	},
}
