package smc

import "fmt"

// InsufficientDataError 表示窗口长度不足以完成某项分析
type InsufficientDataError struct {
	Component string
	Need      int
	Have      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d bars, have %d", e.Component, e.Need, e.Have)
}

// DataQualityError 表示输入 K 线本身有问题，Index 指向第一根出错的 K 线
type DataQualityError struct {
	Index  int
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("bad bar at index %d: %s", e.Index, e.Reason)
}
