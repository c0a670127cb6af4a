package tgCallback

// Callbacks buttons prefixes
const (
	AddVariant       string = "add_variant" // инициировать добавление новой заявки
	CreateTradeSheet string = "create_trade_sheet"
	SetPosition      string = "set_position"
	SetBenchmark     string = "set_benchmark"
	ChangeLabValue   string = "change_lab_value"

	OpenLabPrefix       string = "open_lab:"
	FlipActionPrefix    string = "flip_action:"    // перевернуть направление конфликтной заявки
	DeleteVariantPrefix string = "delete_variant:" // убрать заявку в корзину
	PrevPagePrefix      string = "prev_page:"
	NextPagePrefix      string = "next_page:"
)
