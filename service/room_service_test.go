package service

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newTestRoom(t *testing.T) (*RoomService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, sqldb := newMockDB(t)
	t.Cleanup(func() { _ = sqldb.Close() })
	return NewRoomService(&Service{DB: db}), mock
}

func TestRoomService_CreateRoom(t *testing.T) {
	s, mock := newTestRoom(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `im_room`").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO `im_room_member`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	room, err := s.CreateRoom("general", "the lobby", false, 9)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.ID != 5 {
		t.Fatalf("room.ID = %d, want 5", room.ID)
	}
	if room.CreatorID != 9 {
		t.Fatalf("creatorID = %d, want 9", room.CreatorID)
	}
	if _, err := uuid.Parse(room.RoomAccount); err != nil {
		t.Fatalf("roomAccount %q is not a UUID: %v", room.RoomAccount, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomService_CreateRoomValidation(t *testing.T) {
	s, mock := newTestRoom(t)

	if _, err := s.CreateRoom("", "", false, 9); err == nil {
		t.Fatal("empty name must fail")
	}
	if _, err := s.CreateRoom("general", "", false, 0); err == nil {
		t.Fatal("zero creator must fail")
	}
	// 校验失败不应触达数据库
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected SQL issued: %v", err)
	}
}

func TestRoomService_CreateRoomRollsBackOnMemberInsertFailure(t *testing.T) {
	s, mock := newTestRoom(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `im_room`").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO `im_room_member`").
		WillReturnError(sqlmock.ErrCancelled)
	mock.ExpectRollback()

	if _, err := s.CreateRoom("general", "", false, 9); err == nil {
		t.Fatal("expected error when owner insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomService_CheckRoomMember(t *testing.T) {
	s, mock := newTestRoom(t)

	mock.ExpectQuery("SELECT count(.+) FROM `im_room_member`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	ok, err := s.CheckRoomMember(1, 42)
	if err != nil {
		t.Fatalf("CheckRoomMember: %v", err)
	}
	if !ok {
		t.Fatal("expected member")
	}

	mock.ExpectQuery("SELECT count(.+) FROM `im_room_member`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	ok, err = s.CheckRoomMember(1, 43)
	if err != nil {
		t.Fatalf("CheckRoomMember: %v", err)
	}
	if ok {
		t.Fatal("expected non-member")
	}
}

func TestRoomService_GetRoomByAccount(t *testing.T) {
	s, mock := newTestRoom(t)

	account := "d94f3f01-9d29-4c42-bb03-1f3ba844d2f6"
	rows := sqlmock.NewRows([]string{"id", "room_account", "name"}).
		AddRow(1, account, "general")
	mock.ExpectQuery("SELECT (.+) FROM `im_room`").WillReturnRows(rows)

	room, err := s.GetRoomByAccount(account)
	if err != nil {
		t.Fatalf("GetRoomByAccount: %v", err)
	}
	if room.ID != 1 || room.Name != "general" {
		t.Fatalf("room = %+v", room)
	}
}

func TestRoomService_GetRoomMembers(t *testing.T) {
	s, mock := newTestRoom(t)

	rows := sqlmock.NewRows([]string{"member_id"}).AddRow(9).AddRow(42)
	mock.ExpectQuery("SELECT `member_id` FROM `im_room_member`").WillReturnRows(rows)

	ids, err := s.GetRoomMembers(1)
	if err != nil {
		t.Fatalf("GetRoomMembers: %v", err)
	}
	if len(ids) != 2 || ids[0] != 9 || ids[1] != 42 {
		t.Fatalf("ids = %v", ids)
	}
}
