package database

import "time"

// MemberInfo records one user's membership in a call room.
type MemberInfo struct {
	RoomID   string
	UserID   string
	JoinedAt time.Time
}

// Is reports whether the membership belongs to the given user.
func (m *MemberInfo) Is(userID string) bool {
	return m.UserID == userID
}

// DeepCopy creates a deep copy of the given MemberInfo.
func (m *MemberInfo) DeepCopy() *MemberInfo {
	return &MemberInfo{
		RoomID:   m.RoomID,
		UserID:   m.UserID,
		JoinedAt: m.JoinedAt,
	}
}
