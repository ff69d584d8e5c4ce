package protocol

import "fmt"

// Kind дискриминатор сообщения в заголовке кадра
type Kind uint16

const (
	KindPlayerID        Kind = iota + 1 // 1: ID игрока
	KindLevelLayout                     // 2: Блоки уровня
	KindRescuableLayout                 // 3: Спасаемые
	KindHazardLayout                    // 4: Опасные существа
	KindTick                            // 5: Такт клиента
	KindFinalScore                      // 6: Итоговый счёт
	KindSnapshot                        // 7: Ответ сервера
	KindHello                           // 8: Первый кадр клиента по KCP
)

func (k Kind) String() string {
	switch k {
	case KindPlayerID:
		return "player_id"
	case KindLevelLayout:
		return "level_layout"
	case KindRescuableLayout:
		return "rescuable_layout"
	case KindHazardLayout:
		return "hazard_layout"
	case KindTick:
		return "tick"
	case KindFinalScore:
		return "final_score"
	case KindSnapshot:
		return "snapshot"
	case KindHello:
		return "hello"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

// Payload любое сообщение протокола. Получатель разбирает его через type switch.
type Payload interface {
	Kind() Kind
}

func (PlayerID) Kind() Kind        { return KindPlayerID }
func (LevelLayout) Kind() Kind     { return KindLevelLayout }
func (RescuableLayout) Kind() Kind { return KindRescuableLayout }
func (HazardLayout) Kind() Kind    { return KindHazardLayout }
func (TickEnvelope) Kind() Kind    { return KindTick }
func (FinalScore) Kind() Kind      { return KindFinalScore }
func (Snapshot) Kind() Kind        { return KindSnapshot }
func (Hello) Kind() Kind           { return KindHello }

// newPayload возвращает указатель на пустое сообщение нужного вида
func newPayload(k Kind) (Payload, error) {
	switch k {
	case KindPlayerID:
		return &PlayerID{}, nil
	case KindLevelLayout:
		return &LevelLayout{}, nil
	case KindRescuableLayout:
		return &RescuableLayout{}, nil
	case KindHazardLayout:
		return &HazardLayout{}, nil
	case KindTick:
		return &TickEnvelope{}, nil
	case KindFinalScore:
		return &FinalScore{}, nil
	case KindSnapshot:
		return &Snapshot{}, nil
	case KindHello:
		return &Hello{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint16(k))
	}
}
