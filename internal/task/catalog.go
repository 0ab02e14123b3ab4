package task

// Kind selects what the assistant does in a run.
type Kind string

const (
	KindMaterial    Kind = "material"
	KindUniverse    Kind = "universe"
	KindClaimReward Kind = "claim_reward"
)

// Kinds lists the accepted task kinds in schema order.
var Kinds = []Kind{KindMaterial, KindUniverse, KindClaimReward}

// Category is a material farming category and the stages it offers.
type Category struct {
	Name string
	IDs  []string
}

// Categories is the closed table of material categories and stage ids the
// assistant knows how to farm.
var Categories = []Category{
	{Name: "饰品提取", IDs: []string{
		"月下朱殷", "纷争不休", "蠹役饥肠", "永恒笑剧", "伴你入眠", "天剑如雨",
		"孽果盘生", "百年冻土", "温柔话语", "浴火钢心", "坚城不倒",
	}},
	{Name: "拟造花萼（金）", IDs: []string{"回忆之蕾", "以太之蕾", "珍藏之蕾"}},
	{Name: "拟造花萼（赤）", IDs: []string{
		"鳞渊境", "收容舱段", "克劳克影视乐园", "支援舱段", "苏乐达™热砂海选会场",
		"城郊雪原", "绥园", "边缘通路", "匹诺康尼大剧院", "铆钉镇",
		"「白日梦」酒店-梦镜", "机械聚落", "丹鼎司", "大矿区", "「纷争荒墟」悬锋城",
	}},
	{Name: "凝滞虚影", IDs: []string{
		"空海之形", "巽风之形", "鸣雷之形", "炎华之形", "锋芒之形", "霜晶之形",
		"幻光之形", "冰棱之形", "震厄之形", "偃偶之形", "孽兽之形", "天人之形",
		"幽府之形", "燔灼之形", "冰酿之形", "焦炙之形", "嗔怒之形", "职司之形",
		"机狼之形", "今宵之形", "弦音之形", "凛月之形", "役轮之形", "溟簇之形",
		"烬日之形",
	}},
	{Name: "侵蚀隧洞", IDs: []string{
		"霜风之径", "迅拳之径", "漂泊之径", "睿治之径", "圣颂之径", "野焰之径",
		"药使之径", "幽冥之径", "梦潜之径", "勇骑之径", "迷识之径", "弦歌之径",
		"雳涌之径",
	}},
	{Name: "历战余响", IDs: []string{
		"晨昏的回眸", "心兽的战场", "尘梦的赞礼", "蛀星的旧靥", "不死的神实",
		"寒潮的落幕", "毁灭的开端",
	}},
}

// Universe types. The divergent universe runs a different game mode.
const (
	UniverseSimulated = "模拟宇宙"
	UniverseDivergent = "差分宇宙"
)

// UniverseTypes lists the accepted universe types.
var UniverseTypes = []string{UniverseSimulated, UniverseDivergent}

// Universe difficulty bounds, inclusive.
const (
	MinDifficulty = 0
	MaxDifficulty = 5
)

// RewardDailyTraining is the only claimable reward type.
const RewardDailyTraining = "每日实训"

// RewardTypes lists the accepted reward types.
var RewardTypes = []string{RewardDailyTraining}

// CategoryNames returns the material category names in table order.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = c.Name
	}
	return names
}

// LookupCategory returns the category called name.
func LookupCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
