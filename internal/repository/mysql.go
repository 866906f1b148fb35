package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/lvdashuaibi/hotrank/config"
	"github.com/lvdashuaibi/hotrank/internal/model"
)

type MySQLRepository struct {
	masterDB *sql.DB
	slaveDB  *sql.DB
}

func NewMySQLRepository() (*MySQLRepository, error) {
	masterDB, err := sql.Open("mysql", config.AppConfig.MySQL.Master)
	if err != nil {
		return nil, fmt.Errorf("连接主数据库失败: %w", err)
	}

	masterDB.SetMaxOpenConns(config.AppConfig.MySQL.MaxOpenConns)
	masterDB.SetMaxIdleConns(config.AppConfig.MySQL.MaxIdleConns)
	masterDB.SetConnMaxLifetime(time.Hour)

	if err = masterDB.Ping(); err != nil {
		return nil, fmt.Errorf("主数据库连接测试失败: %w", err)
	}

	slaveDB, err := sql.Open("mysql", config.AppConfig.MySQL.Slave)
	if err != nil {
		return nil, fmt.Errorf("连接从数据库失败: %w", err)
	}

	slaveDB.SetMaxOpenConns(config.AppConfig.MySQL.MaxOpenConns)
	slaveDB.SetMaxIdleConns(config.AppConfig.MySQL.MaxIdleConns)
	slaveDB.SetConnMaxLifetime(time.Hour)

	if err = slaveDB.Ping(); err != nil {
		log.Printf("从数据库连接测试失败: %v，将使用主数据库代替", err)
		slaveDB = masterDB
	}

	return &MySQLRepository{
		masterDB: masterDB,
		slaveDB:  slaveDB,
	}, nil
}

// FindEvent 查找事件
func (r *MySQLRepository) FindEvent(ctx context.Context, id int64) (*model.RsEvent, bool, error) {
	query := "SELECT id, event_name, keyword, vote_num, user_id, created_at FROM rs_events WHERE id = ?"
	row := r.slaveDB.QueryRowContext(ctx, query, id)

	var event model.RsEvent
	err := row.Scan(&event.ID, &event.EventName, &event.Keyword, &event.VoteNum, &event.UserID, &event.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("查询事件失败: %w", err)
	}

	return &event, true, nil
}

// AllEvents 获取全部事件，按ID升序（即提交先后顺序）
func (r *MySQLRepository) AllEvents(ctx context.Context) ([]*model.RsEvent, error) {
	query := "SELECT id, event_name, keyword, vote_num, user_id, created_at FROM rs_events ORDER BY id"
	rows, err := r.slaveDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询全部事件失败: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountEvents 统计事件总数
func (r *MySQLRepository) CountEvents(ctx context.Context) (int, error) {
	var count int
	err := r.slaveDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM rs_events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("统计事件总数失败: %w", err)
	}
	return count, nil
}

// CreateEvent 保存新事件
func (r *MySQLRepository) CreateEvent(ctx context.Context, event *model.RsEvent) error {
	query := "INSERT INTO rs_events (event_name, keyword, vote_num, user_id) VALUES (?, ?, ?, ?)"
	result, err := r.masterDB.ExecContext(ctx, query, event.EventName, event.Keyword, event.VoteNum, event.UserID)
	if err != nil {
		return fmt.Errorf("保存事件失败: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("获取事件ID失败: %w", err)
	}
	event.ID = id
	return nil
}

// FindUser 查找用户
func (r *MySQLRepository) FindUser(ctx context.Context, id int64) (*model.User, bool, error) {
	query := "SELECT id, user_name, gender, email, phone, age, vote_num, created_at FROM users WHERE id = ?"
	row := r.slaveDB.QueryRowContext(ctx, query, id)

	var user model.User
	err := row.Scan(&user.ID, &user.UserName, &user.Gender, &user.Email, &user.Phone, &user.Age, &user.VoteNum, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("查询用户失败: %w", err)
	}

	return &user, true, nil
}

// CreateUser 保存新用户
func (r *MySQLRepository) CreateUser(ctx context.Context, user *model.User) error {
	query := "INSERT INTO users (user_name, gender, email, phone, age, vote_num) VALUES (?, ?, ?, ?, ?, ?)"
	result, err := r.masterDB.ExecContext(ctx, query,
		user.UserName, user.Gender, user.Email, user.Phone, user.Age, user.VoteNum)
	if err != nil {
		return fmt.Errorf("保存用户失败: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("获取用户ID失败: %w", err)
	}
	user.ID = id
	return nil
}

// DeleteUser 删除用户并连带删除其名下事件
func (r *MySQLRepository) DeleteUser(ctx context.Context, id int64) error {
	tx, err := r.masterDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	// 先清理该用户事件关联的排名记录与事件本身，再删用户
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM trades WHERE rs_event_id IN (SELECT id FROM rs_events WHERE user_id = ?)", id); err != nil {
		tx.Rollback()
		return fmt.Errorf("删除用户排名记录失败: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM rs_events WHERE user_id = ?", id); err != nil {
		tx.Rollback()
		return fmt.Errorf("删除用户事件失败: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
		tx.Rollback()
		return fmt.Errorf("删除用户失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// CastVote 投票事务：写入流水、事件票数加n、用户余额减n
func (r *MySQLRepository) CastVote(ctx context.Context, record *model.VoteRecord) error {
	tx, err := r.masterDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO vote_records (user_id, rs_event_id, num, voted_at) VALUES (?, ?, ?, ?)",
		record.UserID, record.EventID, record.Num, record.VotedAt)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("写入投票流水失败: %w", err)
	}
	recordID, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("获取投票流水ID失败: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE rs_events SET vote_num = vote_num + ? WHERE id = ?", record.Num, record.EventID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("更新事件票数失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("获取更新结果失败: %w", err)
	}
	if affected == 0 {
		tx.Rollback()
		return model.ErrEventNotFound
	}

	// 不校验余额是否足够，允许扣成负数
	res, err = tx.ExecContext(ctx,
		"UPDATE users SET vote_num = vote_num - ? WHERE id = ?", record.Num, record.UserID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("扣减用户余额失败: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("获取更新结果失败: %w", err)
	}
	if affected == 0 {
		tx.Rollback()
		return model.ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}

	record.ID = recordID
	return nil
}

// VotesOfEvent 查询事件的投票流水
func (r *MySQLRepository) VotesOfEvent(ctx context.Context, eventID int64) ([]*model.VoteRecord, error) {
	query := "SELECT id, user_id, rs_event_id, num, voted_at FROM vote_records WHERE rs_event_id = ? ORDER BY id"
	rows, err := r.slaveDB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("查询投票流水失败: %w", err)
	}
	defer rows.Close()

	var records []*model.VoteRecord
	for rows.Next() {
		var record model.VoteRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.EventID, &record.Num, &record.VotedAt); err != nil {
			return nil, fmt.Errorf("扫描投票流水失败: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代投票流水失败: %w", err)
	}

	return records, nil
}

// PlaceTrade 排名购买事务。排名行持有行锁，保证同一排名的判定串行执行。
func (r *MySQLRepository) PlaceTrade(ctx context.Context, rank, amount int, eventID int64) (*model.TradeResult, error) {
	tx, err := r.masterDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开始事务失败: %w", err)
	}

	// 确认目标事件仍然存在
	var exists int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM rs_events WHERE id = ? FOR UPDATE", eventID).Scan(&exists)
	if err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("查询目标事件失败: %w", err)
	}

	// 锁住排名行后做判定
	var incumbentAmount int
	var incumbentEventID int64
	err = tx.QueryRowContext(ctx,
		"SELECT amount, rs_event_id FROM trades WHERE `rank` = ? FOR UPDATE", rank).
		Scan(&incumbentAmount, &incumbentEventID)

	switch {
	case err == sql.ErrNoRows:
		// 排名空缺，直接插入
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO trades (`rank`, amount, rs_event_id) VALUES (?, ?, ?)", rank, amount, eventID); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("插入排名记录失败: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("提交事务失败: %w", err)
		}
		return &model.TradeResult{Rank: rank, Amount: amount, EventID: eventID}, nil

	case err != nil:
		tx.Rollback()
		return nil, fmt.Errorf("查询排名记录失败: %w", err)

	case incumbentAmount >= amount:
		// 出价不足，拒绝且不产生任何变更
		tx.Rollback()
		return nil, model.ErrBidTooLow

	default:
		// 出价更高：原地覆盖排名记录，在位事件永久删除
		if _, err := tx.ExecContext(ctx,
			"UPDATE trades SET amount = ?, rs_event_id = ? WHERE `rank` = ?", amount, eventID, rank); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("更新排名记录失败: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM rs_events WHERE id = ?", incumbentEventID); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("删除在位事件失败: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("提交事务失败: %w", err)
		}
		return &model.TradeResult{Rank: rank, Amount: amount, EventID: eventID, EvictedEventID: incumbentEventID}, nil
	}
}

// RankSnapshot 同一事务内读取全部事件与排名记录
func (r *MySQLRepository) RankSnapshot(ctx context.Context) ([]*model.RsEvent, []*model.Trade, error) {
	tx, err := r.slaveDB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("开始只读事务失败: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT id, event_name, keyword, vote_num, user_id, created_at FROM rs_events ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("查询全部事件失败: %w", err)
	}
	events, err := scanEvents(rows)
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	rows, err = tx.QueryContext(ctx, "SELECT id, `rank`, amount, rs_event_id FROM trades ORDER BY `rank`")
	if err != nil {
		return nil, nil, fmt.Errorf("查询排名记录失败: %w", err)
	}
	defer rows.Close()

	var trades []*model.Trade
	for rows.Next() {
		var trade model.Trade
		if err := rows.Scan(&trade.ID, &trade.Rank, &trade.Amount, &trade.EventID); err != nil {
			return nil, nil, fmt.Errorf("扫描排名记录失败: %w", err)
		}
		trades = append(trades, &trade)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("迭代排名记录失败: %w", err)
	}

	return events, trades, nil
}

// Close 关闭数据库连接
func (r *MySQLRepository) Close() {
	if r.masterDB != nil {
		r.masterDB.Close()
	}
	if r.slaveDB != nil && r.slaveDB != r.masterDB {
		r.slaveDB.Close()
	}
}

func scanEvents(rows *sql.Rows) ([]*model.RsEvent, error) {
	var events []*model.RsEvent
	for rows.Next() {
		var event model.RsEvent
		if err := rows.Scan(&event.ID, &event.EventName, &event.Keyword, &event.VoteNum, &event.UserID, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("扫描事件失败: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代事件失败: %w", err)
	}
	return events, nil
}
