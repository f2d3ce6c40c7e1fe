package models

// Subject and grade taxonomies for lesson material metadata.
var (
	Subjects = []string{
		"语文", "数学", "英语", "物理", "化学", "生物",
		"历史", "地理", "政治", "音乐", "美术", "体育", "其他",
	}

	Grades = []string{
		"一年级", "二年级", "三年级", "四年级", "五年级", "六年级",
		"七年级", "八年级", "九年级", "未知",
	}

	// GradeOrder positions grades for adjacency checks: elementary 0-5,
	// middle school 6-8.
	GradeOrder = []string{
		"一年级", "二年级", "三年级", "四年级", "五年级", "六年级",
		"七年级", "八年级", "九年级",
	}

	// GradeMapping canonicalizes alternate grade spellings.
	GradeMapping = map[string]string{
		"小学一年级": "一年级",
		"小学二年级": "二年级",
		"小学三年级": "三年级",
		"小学四年级": "四年级",
		"小学五年级": "五年级",
		"小学六年级": "六年级",
		"初中一年级": "七年级",
		"初中二年级": "八年级",
		"初中三年级": "九年级",
		"初一":    "七年级",
		"初二":    "八年级",
		"初三":    "九年级",
	}

	// SubjectVariants maps alternate subject names found in filenames.
	SubjectVariants = map[string]string{
		"道德与法治": "政治",
		"思想品德":  "政治",
		"科学":    "物理",
		"自然":    "生物",
		"社会":    "历史",
	}
)

const (
	UnknownSubject = "其他"
	UnknownGrade   = "未知"
	UnknownSource  = "未知"
)

// SubjectQueries are generic per-subject fallback phrases used when the
// targeted retrieval strategies come back empty.
var SubjectQueries = map[string][]string{
	"音乐": {"音乐教学", "歌曲教学", "音乐欣赏", "节奏训练"},
	"美术": {"美术教学", "绘画技巧", "色彩搭配", "创意表达"},
	"体育": {"体育教学", "运动技能", "身体协调", "团队合作"},
	"政治": {"思想教育", "品德培养", "公民素养", "道德教育", "道德与法治"},
	"历史": {"历史故事", "文化传承", "时代背景", "历史人物", "古代文明", "中国历史", "世界历史"},
	"地理": {"地理知识", "自然环境", "人文地理", "地图使用"},
	"物理": {"物理实验", "科学探究", "物理现象", "实验方法"},
	"化学": {"化学实验", "化学反应", "实验安全", "观察记录"},
	"生物": {"生物观察", "生命科学", "自然现象", "科学实验"},
	"语文": {"语文教学", "阅读理解", "写作技巧", "文学作品"},
	"数学": {"数学教学", "数学思维", "解题方法", "数学概念"},
	"英语": {"英语教学", "语言学习", "口语练习", "听力训练"},
}

// GeneralQueries apply to every subject.
var GeneralQueries = []string{"教学方法", "课堂组织", "学生参与", "教学活动"}

// Keyword tables for quality scoring and keyword extraction.
var (
	EducationKeywords = []string{
		"教学", "学习", "目标", "重点", "难点", "方法", "过程",
		"活动", "练习", "作业", "评价", "学生", "教师", "课堂",
	}

	PriorityKeywords = []string{
		"教学目标", "学习目标", "教学重点", "教学难点", "教学方法",
		"教学过程", "课堂活动", "练习", "作业", "评价", "反思",
		"知识", "技能", "能力", "素养", "思维", "创新", "实践",
	}

	StructureMarkers = []string{
		"一、", "二、", "三、", "1.", "2.", "3.", "（一）", "（二）",
	}

	CompletenessMarkers = []string{"总结", "小结", "作业", "练习", "反思"}
)

// LessonPromptTemplate wraps retrieved context and the teacher's request
// for the completion service.
const LessonPromptTemplate = `你是一名经验丰富的教学设计助手。请结合下面的参考资料回答问题。

参考资料:
%s

问题: %s
`
