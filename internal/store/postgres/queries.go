package postgres

const queryFindDueScheduledItems = `
SELECT
    id, owner_id, description, amount, category_id, payment_method_id,
    frequency, next_execution_date, active, created_at, updated_at
FROM scheduled_items
WHERE active = true
  AND next_execution_date < $1
ORDER BY id
`

const queryUpdateNextExecutionDate = `
UPDATE scheduled_items
SET next_execution_date = $1, updated_at = NOW()
WHERE id = $2
`

const queryInsertScheduledItem = `
INSERT INTO scheduled_items
    (owner_id, description, amount, category_id, payment_method_id,
     frequency, next_execution_date, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id
`

const queryGetScheduledItemByID = `
SELECT
    id, owner_id, description, amount, category_id, payment_method_id,
    frequency, next_execution_date, active, created_at, updated_at
FROM scheduled_items
WHERE id = $1 AND owner_id = $2
`

const queryListScheduledItems = `
SELECT
    id, owner_id, description, amount, category_id, payment_method_id,
    frequency, next_execution_date, active, created_at, updated_at
FROM scheduled_items
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

// Transactions are financial history: deleting an item detaches them
// instead of cascading the delete.
const queryDeleteScheduledItem = `
WITH detached AS (
    UPDATE transactions
    SET scheduled_item_id = NULL
    WHERE scheduled_item_id = $1
)
DELETE FROM scheduled_items WHERE id = $1 AND owner_id = $2
RETURNING id`

const queryInsertTransaction = `
INSERT INTO transactions
    (id, owner_id, description, amount, category_id, payment_method_id,
     scheduled_item_id, execution_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const querySameDayTransactionExists = `
SELECT EXISTS (
    SELECT 1 FROM transactions
    WHERE scheduled_item_id = $1
      AND execution_date >= $2
      AND execution_date < $3
)`

const queryListTransactionsForItem = `
SELECT
    id, owner_id, description, amount, category_id, payment_method_id,
    scheduled_item_id, execution_date, created_at
FROM transactions
WHERE scheduled_item_id = $1
ORDER BY execution_date DESC
LIMIT $2 OFFSET $3
`

const queryApplySpend = `
UPDATE budgets
SET spent = spent + $3, updated_at = NOW()
WHERE owner_id = $1
  AND category_id = $2
  AND active = true
RETURNING id, owner_id, category_id, limit_amount, spent, spent - $3,
          active, created_at, updated_at
`

const queryListOpenDebtsDueBy = `
SELECT id, owner_id, description, amount, due_date, settled, created_at, updated_at
FROM debts
WHERE settled = false
  AND due_date <= $1
ORDER BY due_date ASC
`

const queryInsertNotification = `
INSERT INTO notifications
    (id, owner_id, kind, entity_id, title, body, send_email, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING
`

const queryInsertDeliveryAttempt = `
INSERT INTO delivery_attempts (id, notification_id, attempt, status_code, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const queryGetNotificationStatus = `
SELECT status FROM notifications WHERE id = $1
`

const queryUpdateNotificationStatus = `
UPDATE notifications
SET status = $1
WHERE id = $2
  AND status NOT IN ('sent', 'failed')
`

const queryGetStalePendingNotifications = `
SELECT id, owner_id, kind, entity_id, title, body, send_email, status, created_at
FROM notifications
WHERE status = 'pending'
  AND created_at < $1
ORDER BY created_at ASC
LIMIT $2
`

const queryListNotifications = `
SELECT id, owner_id, kind, entity_id, title, body, send_email, status, created_at
FROM notifications
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`
