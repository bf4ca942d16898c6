package service

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/cydxin/roomchat-sdk/cons"
)

func newTestReceipt(t *testing.T) (*ReceiptService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, sqldb := newMockDB(t)
	t.Cleanup(func() { _ = sqldb.Close() })
	return NewReceiptService(&Service{DB: db}), mock
}

func TestReceiptService_CreateDeliveryReceipts(t *testing.T) {
	s, mock := newTestReceipt(t)

	mock.ExpectExec("INSERT INTO `im_message_receipt`").
		WillReturnResult(sqlmock.NewResult(1, 2))

	// recipient 0 会被过滤，不参与插入
	s.CreateDeliveryReceipts(10, []uint64{1, 0, 2})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReceiptService_CreateDeliveryReceipts_NoRecipients(t *testing.T) {
	s, mock := newTestReceipt(t)

	// 空接收者列表不触发任何 SQL
	s.CreateDeliveryReceipts(10, nil)
	s.CreateDeliveryReceipts(0, []uint64{1})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected SQL issued: %v", err)
	}
}

func TestReceiptService_MarkAsRead_RemarkRefreshes(t *testing.T) {
	s, mock := newTestReceipt(t)

	// 单条标记不限定当前未读：WHERE 只按 message_id + recipient_id 过滤
	const updatePattern = "UPDATE `im_message_receipt` SET `read_at`=.,`updated_at`=. " +
		"WHERE message_id = . AND recipient_id = .$"

	mock.ExpectExec(updatePattern).WillReturnResult(sqlmock.NewResult(0, 1))
	if !s.MarkAsRead(10, 7) {
		t.Fatalf("first mark must report a matched row")
	}

	// 已读过的行重复标记仍然命中（刷新 read_at），不是 0 行
	mock.ExpectExec(updatePattern).WillReturnResult(sqlmock.NewResult(0, 1))
	if !s.MarkAsRead(10, 7) {
		t.Fatalf("re-mark must still report a matched row")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReceiptService_MarkAsRead_NoMatchingReceipt(t *testing.T) {
	s, mock := newTestReceipt(t)

	mock.ExpectExec("UPDATE `im_message_receipt` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if s.MarkAsRead(99, 7) {
		t.Fatalf("no receipt row must report false")
	}
	if s.MarkAsRead(0, 7) || s.MarkAsRead(10, 0) {
		t.Fatalf("zero ids must short-circuit to false")
	}
}

func TestReceiptService_MarkMultipleAsRead(t *testing.T) {
	s, mock := newTestReceipt(t)

	mock.ExpectExec("UPDATE `im_message_receipt` SET").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n := s.MarkMultipleAsRead([]uint64{10, 11, 12}, 7)
	if n != 2 {
		t.Fatalf("marked = %d, want 2", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReceiptService_MarkMultipleAsRead_Idempotent(t *testing.T) {
	s, mock := newTestReceipt(t)

	// 全部已读时 UPDATE 影响 0 行
	mock.ExpectExec("UPDATE `im_message_receipt` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if n := s.MarkMultipleAsRead([]uint64{10}, 7); n != 0 {
		t.Fatalf("marked = %d, want 0", n)
	}
}

func TestReceiptService_MarkMultipleAsRead_SwallowsError(t *testing.T) {
	s, mock := newTestReceipt(t)

	mock.ExpectExec("UPDATE `im_message_receipt` SET").
		WillReturnError(sqlmock.ErrCancelled)

	if n := s.MarkMultipleAsRead([]uint64{10}, 7); n != 0 {
		t.Fatalf("storage failure must yield 0, got %d", n)
	}
}

func TestComputeReadStatus(t *testing.T) {
	cases := []struct {
		total, read int64
		want        string
	}{
		{0, 0, cons.ReadStatusNoRecipients},
		{3, 0, cons.ReadStatusUnread},
		{3, 1, cons.ReadStatusPartiallyRead},
		{3, 3, cons.ReadStatusAllRead},
		{1, 1, cons.ReadStatusAllRead},
	}
	for _, c := range cases {
		if got := computeReadStatus(c.total, c.read); got != c.want {
			t.Errorf("computeReadStatus(%d, %d) = %q, want %q", c.total, c.read, got, c.want)
		}
	}
}

func TestReceiptService_GetMessagesWithReceipts(t *testing.T) {
	s, mock := newTestReceipt(t)

	rows := sqlmock.NewRows([]string{"message_id", "total", "read_count"}).
		AddRow(10, 3, 1).
		AddRow(11, 2, 2)
	mock.ExpectQuery("SELECT message_id, COUNT").WillReturnRows(rows)

	got := s.GetMessagesWithReceipts([]uint64{10, 11, 12})

	if got[10].ReadStatus != cons.ReadStatusPartiallyRead {
		t.Fatalf("msg 10 status = %q", got[10].ReadStatus)
	}
	if got[11].ReadStatus != cons.ReadStatusAllRead {
		t.Fatalf("msg 11 status = %q", got[11].ReadStatus)
	}
	// 没有任何回执行的消息：no_recipients
	if got[12].ReadStatus != cons.ReadStatusNoRecipients {
		t.Fatalf("msg 12 status = %q", got[12].ReadStatus)
	}
}

func TestReceiptService_GetUnreadMessages_SwallowsError(t *testing.T) {
	s, mock := newTestReceipt(t)

	mock.ExpectQuery("SELECT").WillReturnError(sqlmock.ErrCancelled)

	if got := s.GetUnreadMessages(7, 0); got != nil {
		t.Fatalf("storage failure must yield nil, got %v", got)
	}
}
